// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lifecycle

import (
	"sync"

	"grimm.is/adamfw/internal/errors"
	"grimm.is/adamfw/internal/logging"
	"grimm.is/adamfw/internal/schema"
)

// Classifier abstracts the attach/detach surface of classifier.Loader so
// the coordinator's transition policy is testable without a loaded eBPF
// program.
type Classifier interface {
	// Attach links the program to iface, returning a human-readable
	// description of the attach mode used (e.g. "driver" or "generic")
	// for logging.
	Attach(iface string) (string, error)
	Detach() error
}

// Coordinator owns the Loaded/Started/Terminated state machine and the
// single attached-link handle. Repeated Start/Halt in the wrong state is
// an observable no-op, logged but not an error to the caller, matching
// the documented transition policy.
type Coordinator struct {
	mu        sync.Mutex
	state     *Watch
	classifier Classifier
	iface     string
	log       *logging.Logger
}

// New creates a Coordinator in the Loaded state.
func New(classifier Classifier, iface string, log *logging.Logger) *Coordinator {
	return &Coordinator{
		state:      NewWatch(schema.Loaded),
		classifier: classifier,
		iface:      iface,
		log:        log,
	}
}

// Watch returns the coordinator's state-change watch for workers to
// select on.
func (c *Coordinator) Watch() *Watch { return c.state }

// State returns the current lifecycle state.
func (c *Coordinator) State() schema.LifecycleState { return c.state.Get() }

// Start attaches the classifier to the configured interface and
// publishes Started. A Start while already Started is a no-op.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Get() != schema.Loaded {
		c.log.Warn("start requested in wrong state", "state", c.state.Get().String())
		return nil
	}

	mode, err := c.classifier.Attach(c.iface)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "lifecycle: attach to %s", c.iface)
	}

	c.log.Info("classifier attached", "iface", c.iface, "mode", mode)
	c.state.Set(schema.Started)
	return nil
}

// Halt detaches the classifier, keeping it loaded, and publishes Loaded.
// A Halt while not Started is a no-op.
func (c *Coordinator) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Get() != schema.Started {
		c.log.Warn("halt requested in wrong state", "state", c.state.Get().String())
		return nil
	}

	if err := c.classifier.Detach(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "lifecycle: detach")
	}

	c.log.Info("classifier detached")
	c.state.Set(schema.Loaded)
	return nil
}

// Terminate detaches if attached and publishes Terminated unconditionally.
// Every worker task observes this and drains.
func (c *Coordinator) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Get() == schema.Started {
		if err := c.classifier.Detach(); err != nil {
			c.log.Warn("detach during terminate failed", "error", err)
		}
	}

	c.state.Set(schema.Terminated)
	return nil
}
