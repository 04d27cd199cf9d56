// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command adamfwd is the firewall supervisor: it loads and attaches the
// XDP classifier, synchronizes the rule table between the kernel and
// durable storage, drains blocked-packet events into the event log, and
// serves the control and event Unix sockets the rest of the system is
// driven over.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/adamfw/internal/broadcast"
	"grimm.is/adamfw/internal/classifier"
	"grimm.is/adamfw/internal/ingester"
	"grimm.is/adamfw/internal/ipc"
	"grimm.is/adamfw/internal/lifecycle"
	"grimm.is/adamfw/internal/logging"
	"grimm.is/adamfw/internal/metrics"
	"grimm.is/adamfw/internal/ruletable"
	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/store"
	"grimm.is/adamfw/internal/supervisor"
)

const (
	runtimeDir    = "/run/adam"
	stateDir      = "/var/lib/adam"
	controlSocket = runtimeDir + "/firewall"
	eventSocket   = runtimeDir + "/firewall_events"
	defaultDBPath = stateDir + "/firewall.db"
)

func main() {
	iface := flag.String("iface", "eth0", "network interface to attach the classifier to")
	flag.Parse()

	log := newLogger()

	crash := supervisor.New(stateDir, supervisor.DefaultConfig())
	if !supervisor.ShouldSkipDetection() && crash.ShouldEnterSafeMode() {
		log.Error("too many recent crashes, refusing to start",
			"threshold", supervisor.DefaultConfig().Threshold,
			"last_reason", crash.LastReason())
		os.Exit(1)
	}

	if err := run(*iface, log); err != nil {
		log.Error("fatal", "error", err)
		if !supervisor.ShouldSkipDetection() {
			_ = crash.RecordExit(1, 0, false, err.Error())
		}
		os.Exit(1)
	}

	if !supervisor.ShouldSkipDetection() {
		_ = crash.RecordExit(0, 0, false, "")
		crash.StartStabilityTimer()
	}
}

// watchTerminated closes its returned channel the moment the lifecycle
// coordinator observes Terminated, whether that transition came from an
// OS signal (via coordinator.Terminate() below) or from a Terminate
// message dispatched straight off the control socket
// (internal/ipc/dispatch.go). run's shutdown select needs this as a
// third arm: a control-socket Terminate never touches the signal channel
// or the fatal channel, so without it run would block forever and the
// deferred cleanup below would never execute.
func watchTerminated(c *lifecycle.Coordinator) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		watch := c.Watch()
		state := watch.Get()
		for state != schema.Terminated {
			var err error
			state, err = watch.Wait(context.Background(), state)
			if err != nil {
				return
			}
		}
	}()
	return done
}

func newLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	l, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("adamfwd: failed to initialize logger: %v", err)
	}
	return l
}

func run(iface string, log *logging.Logger) error {
	if err := os.MkdirAll(runtimeDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(runtimeDir)

	dbPath := defaultDBPath
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dbPath = v
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	loader, err := classifier.NewLoader()
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := loader.Load(); err != nil {
		return err
	}

	table := ruletable.New(classifier.NewKernelRules(loader), db, m)
	if err := table.Recover(); err != nil {
		return err
	}

	coordinator := lifecycle.New(classifier.NewLifecycle(loader), iface, log)

	ring, err := classifier.NewRingReader(loader)
	if err != nil {
		return err
	}

	feed := broadcast.New[schema.StoredEvent](broadcast.DefaultCapacity)
	gest := ingester.New(ring, db, feed, coordinator.Watch(), m, log)
	go gest.Run()
	defer gest.Stop()

	server := ipc.New(table, coordinator, feed, m, log)

	ctlLis, err := server.ListenControl(controlSocket)
	if err != nil {
		return err
	}
	defer ctlLis.Close()

	evtLis, err := server.ListenEvents(eventSocket)
	if err != nil {
		return err
	}
	defer evtLis.Close()

	log.Info("adamfwd started", "iface", iface, "control_socket", controlSocket, "event_socket", eventSocket)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	terminated := watchTerminated(coordinator)

	select {
	case sig := <-stop:
		log.Info("received signal, terminating", "signal", sig.String())
		return coordinator.Terminate()
	case err := <-server.Fatal():
		log.Error("rule table write failure, terminating", "error", err)
		return coordinator.Terminate()
	case <-terminated:
		log.Info("terminate requested over control socket")
		return nil
	}
}
