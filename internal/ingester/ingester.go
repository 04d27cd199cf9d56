// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ingester drains the classifier's ring buffer, stamps each
// observation with a wall-clock timestamp, persists it durably, and
// republishes it to every live event subscriber.
package ingester

import (
	"context"
	"errors"
	"os"
	"time"

	"grimm.is/adamfw/internal/broadcast"
	"grimm.is/adamfw/internal/lifecycle"
	"grimm.is/adamfw/internal/logging"
	"grimm.is/adamfw/internal/metrics"
	"grimm.is/adamfw/internal/schema"
)

// Source abstracts classifier.RingReader so the drain loop is testable
// without a loaded eBPF program. Read blocks until an event arrives or
// Close unblocks it from another goroutine; it carries no context
// parameter of its own, which is why Run drives it from a side goroutine
// it can abandon rather than cancel directly.
type Source interface {
	Read() (schema.Event, error)
	Close() error
}

// Sink abstracts the durable event log.
type Sink interface {
	AppendEvent(schema.StoredEvent) error
}

// Ingester owns the ring-drain goroutine. It runs until Watch observes
// Terminated or the source reports that it has been closed.
type Ingester struct {
	source  Source
	sink    Sink
	feed    *broadcast.Broadcaster[schema.StoredEvent]
	watch   *lifecycle.Watch
	metrics *metrics.Metrics
	log     *logging.Logger

	done chan struct{}
}

// New creates an Ingester. feed receives every durably-written event for
// downstream streaming; it is never nil.
func New(source Source, sink Sink, feed *broadcast.Broadcaster[schema.StoredEvent], watch *lifecycle.Watch, m *metrics.Metrics, log *logging.Logger) *Ingester {
	return &Ingester{source: source, sink: sink, feed: feed, watch: watch, metrics: m, log: log, done: make(chan struct{})}
}

type readResult struct {
	event schema.Event
	err   error
}

// requestRead launches source.Read on its own goroutine and delivers the
// outcome on the returned channel. The goroutine is never waited on
// directly: if Run abandons it (because Terminated won the race), it
// keeps blocking in the real RingReader until Stop closes the source,
// then delivers into the buffered channel and exits without a reader.
func (g *Ingester) requestRead() <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		ev, err := g.source.Read()
		ch <- readResult{event: ev, err: err}
	}()
	return ch
}

// terminated closes its returned channel the moment Watch observes
// Terminated, so Run can select on it alongside the blocking read.
func (g *Ingester) terminated() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		state := g.watch.Get()
		for state != schema.Terminated {
			var err error
			state, err = g.watch.Wait(context.Background(), state)
			if err != nil {
				return
			}
		}
	}()
	return done
}

// Run drains the source until Terminated is observed or the source reports
// that it has been closed; any other read error is logged and counted, and
// reading continues. It blocks the calling goroutine and is meant to be
// launched with `go`. On
// every iteration it selects between the in-flight read and the
// lifecycle watch, so a Terminate delivered while a read is still
// blocked (as it always is against the real ring buffer) unblocks Run
// immediately rather than waiting for the next event.
func (g *Ingester) Run() {
	defer close(g.done)

	done := g.terminated()
	pending := g.requestRead()

	for {
		select {
		case <-done:
			return

		case res := <-pending:
			if res.err != nil {
				if errors.Is(res.err, errClosed) || errors.Is(res.err, os.ErrClosed) {
					return
				}
				select {
				case <-done:
					return
				default:
				}
				g.log.Warn("ring read failed", "error", res.err)
				if g.metrics != nil {
					g.metrics.RingEventsDropped.Inc()
				}
				pending = g.requestRead()
				continue
			}

			if g.metrics != nil {
				g.metrics.RingEventsObserved.Inc()
			}

			if res.event.Kind == schema.EventBlocked {
				se := schema.StoredEvent{Time: time.Now(), Event: res.event}
				if err := g.sink.AppendEvent(se); err != nil {
					g.log.Error("durable event write failed", "error", err)
					if g.metrics != nil {
						g.metrics.DurableWriteErrors.Inc()
					}
				} else {
					g.feed.Publish(se)
				}
			}

			pending = g.requestRead()
		}
	}
}

// errClosed is a sentinel a Source in this package may wrap to signal a
// clean shutdown from Close rather than a genuine read failure. Run treats
// os.ErrClosed, which classifier.RingReader reports after Close, the same
// way.
var errClosed = errors.New("ingester: source closed")

// Stop closes the underlying source to unblock a pending Read, then waits
// for Run to return.
func (g *Ingester) Stop() error {
	err := g.source.Close()
	<-g.done
	return err
}
