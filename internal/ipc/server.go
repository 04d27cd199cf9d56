// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ipc serves the two Unix-domain sockets the rest of the system
// is driven over: the control socket (request/response verbs against the
// rule table and lifecycle coordinator) and the event socket (a one-way
// stream of durable events to every connected subscriber).
package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"grimm.is/adamfw/internal/broadcast"
	"grimm.is/adamfw/internal/lifecycle"
	"grimm.is/adamfw/internal/logging"
	"grimm.is/adamfw/internal/metrics"
	"grimm.is/adamfw/internal/ruletable"
	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/wire"
)

// Server binds the control and event sockets to a rule table and
// lifecycle coordinator. Every accepted connection is served on its own
// goroutine; a panic in one handler is recovered and logged, not fatal to
// the process.
type Server struct {
	table       *ruletable.Table
	coordinator *lifecycle.Coordinator
	feed        *broadcast.Broadcaster[schema.StoredEvent]
	metrics     *metrics.Metrics
	log         *logging.Logger

	fatal chan error
}

// New creates a Server. feed is the broadcaster the ingester publishes
// durable events to; subscribing to it is how the event socket streams
// live traffic.
func New(table *ruletable.Table, coordinator *lifecycle.Coordinator, feed *broadcast.Broadcaster[schema.StoredEvent], m *metrics.Metrics, log *logging.Logger) *Server {
	return &Server{table: table, coordinator: coordinator, feed: feed, metrics: m, log: log, fatal: make(chan error, 1)}
}

// Fatal reports an unrecoverable durable-storage or kernel-map write error
// encountered while serving a request. The supervisor's main loop should treat a value
// received here as a reason to exit.
func (s *Server) Fatal() <-chan error { return s.fatal }

func (s *Server) reportFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

// listenUnix removes any stale socket file at path, binds a new one with
// owner and group read/write permissions (0660), and returns the listener.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0660); err != nil {
		lis.Close()
		return nil, err
	}
	return lis, nil
}

// ListenControl binds the control socket at path and serves it in the
// background until the lifecycle coordinator observes Terminated.
func (s *Server) ListenControl(path string) (net.Listener, error) {
	lis, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	go s.serve(lis, "control", s.handleControlConn)
	go s.closeOnTerminate(lis)
	return lis, nil
}

// ListenEvents binds the event socket at path and serves it in the
// background until the lifecycle coordinator observes Terminated.
func (s *Server) ListenEvents(path string) (net.Listener, error) {
	lis, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	go s.serve(lis, "events", s.handleEventConn)
	go s.closeOnTerminate(lis)
	return lis, nil
}

func (s *Server) closeOnTerminate(lis net.Listener) {
	watch := s.coordinator.Watch()
	state := watch.Get()
	for state != schema.Terminated {
		var err error
		state, err = watch.Wait(context.Background(), state)
		if err != nil {
			return
		}
	}
	lis.Close()
}

func (s *Server) serve(lis net.Listener, name string, handle func(net.Conn)) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "socket", name, "error", err)
			return
		}
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("connection handler panicked", "socket", name, "panic", r)
				}
			}()
			defer conn.Close()
			handle(conn)
		}()
	}
}

// handleControlConn reads framed Messages until the peer disconnects,
// dispatching each to the rule table or lifecycle coordinator and
// writing a Response when the verb expects one.
func (s *Server) handleControlConn(conn net.Conn) {
	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug("control read failed", "error", err)
			}
			return
		}

		resp, fatal := s.dispatch(msg)
		if fatal != nil {
			s.reportFatal(fatal)
			return
		}
		if !msg.HasResponse() {
			continue
		}
		if err := wire.WriteFrame(conn, resp); err != nil {
			s.log.Debug("control write failed", "error", err)
			return
		}
	}
}

// handleEventConn subscribes conn to the durable event feed and streams
// every published event as a Log frame until the peer disconnects or the
// feed subscription is torn down.
func (s *Server) handleEventConn(conn net.Conn) {
	sub := s.feed.Subscribe()
	defer sub.Unsubscribe()

	if s.metrics != nil {
		s.metrics.EventSubscribers.Inc()
		defer s.metrics.EventSubscribers.Dec()
	}

	for se := range sub.C {
		log := wire.Log{Kind: wire.LogEvent, Event: se}
		if err := wire.WriteFrame(conn, log); err != nil {
			return
		}
	}
}
