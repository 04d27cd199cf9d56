// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package lifecycle owns the Loaded/Started/Terminated state machine and
// the attached classifier link, and publishes every transition to a
// single-writer, many-reader watch channel that every worker task
// observes to know when to drain and exit.
package lifecycle

import (
	"context"
	"sync"

	"grimm.is/adamfw/internal/schema"
)

// Watch is a single-writer, many-reader value cell analogous to a
// tokio::sync::watch channel: readers observe the latest value without
// blocking the writer, and can wait for the next change.
type Watch struct {
	mu    sync.Mutex
	value schema.LifecycleState
	ch    chan struct{}
}

// NewWatch creates a Watch seeded with initial.
func NewWatch(initial schema.LifecycleState) *Watch {
	return &Watch{value: initial, ch: make(chan struct{})}
}

// Get returns the current value.
func (w *Watch) Get() schema.LifecycleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Set publishes a new value and wakes every goroutine blocked in Wait.
func (w *Watch) Set(v schema.LifecycleState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = v
	closed := w.ch
	w.ch = make(chan struct{})
	close(closed)
}

// Wait blocks until the value differs from old, ctx is done, or the
// value becomes Terminated (the universal cancellation signal, always
// returned immediately regardless of old). It returns the observed
// value.
func (w *Watch) Wait(ctx context.Context, old schema.LifecycleState) (schema.LifecycleState, error) {
	for {
		w.mu.Lock()
		cur := w.value
		notify := w.ch
		w.mu.Unlock()

		if cur != old || cur == schema.Terminated {
			return cur, nil
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return cur, ctx.Err()
		}
	}
}
