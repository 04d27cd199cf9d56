// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package classifier loads and attaches the XDP firewall program defined
// in classifier.c, and exposes the FIREWALL_RULES table and
// FIREWALL_EVENTS ring buffer to the rest of the supervisor.
//
// classifier_bpfel.go (the bpf2go-generated Go/ELF bindings for
// classifier.c) is produced by `go generate` against a clang toolchain
// and is deliberately not checked in here, matching the convention the
// rest of this tree's eBPF programs follow — see embed.go's go:generate
// directive. Loader therefore references loadFirewallObjects and the
// FirewallObjects/FirewallPrograms/FirewallMaps types that exist only
// after generation.
package classifier

import (
	"fmt"
	"net"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"

	"grimm.is/adamfw/internal/errors"
)

// Loader owns the loaded eBPF objects for the firewall program: the
// FIREWALL_RULES array, the FIREWALL_EVENTS ring buffer, the PROCESSOR
// tail-call table, and the attached XDP link. The supervisor holds
// exactly one Loader for its entire lifetime.
type Loader struct {
	mu       sync.Mutex
	objs     FirewallObjects
	link     link.Link
	loaded   bool
	attached bool
}

// NewLoader removes the process's memlock limit (required before any
// map can be created) and returns an unloaded Loader.
func NewLoader() (*Loader, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "classifier: remove memlock rlimit")
	}
	return &Loader{}, nil
}

// Load reads the embedded collection spec and instantiates the program
// and maps, without attaching anything to an interface yet. This is the
// Loaded state of the lifecycle coordinator.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return errors.New(errors.KindConflict, "classifier: already loaded")
	}

	if err := loadFirewallObjects(&l.objs, nil); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "classifier: load collection")
	}

	l.loaded = true
	return nil
}

// Attach links the firewall program to iface, preferring native/driver
// mode and falling back to generic (SKB) mode if the driver doesn't
// support native XDP (fallback order recovered from the Rust prototype,
// original_source/firewall/src/main.rs). Returns the flag mode actually
// used.
func (l *Loader) Attach(iface string) (link.XDPAttachFlags, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return 0, errors.New(errors.KindConflict, "classifier: not loaded")
	}
	if l.attached {
		return 0, errors.New(errors.KindConflict, "classifier: already attached")
	}

	ifaceObj, err := net.InterfaceByName(iface)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindNotFound, "classifier: interface %s", iface)
	}

	modes := []link.XDPAttachFlags{link.XDPDriverMode, link.XDPGenericMode}
	var lastErr error
	for _, mode := range modes {
		lnk, err := link.AttachXDP(link.XDPOptions{
			Program:   l.objs.Firewall,
			Interface: ifaceObj.Index,
			Flags:     mode,
		})
		if err == nil {
			l.link = lnk
			l.attached = true
			return mode, nil
		}
		lastErr = err
	}

	return 0, errors.Wrapf(lastErr, errors.KindUnavailable, "classifier: attach to %s (native and SKB mode both failed)", iface)
}

// Detach removes the attached link, keeping the program and maps loaded.
func (l *Loader) Detach() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.attached {
		return nil
	}
	err := l.link.Close()
	l.link = nil
	l.attached = false
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "classifier: detach")
	}
	return nil
}

// Close detaches (if attached) and releases all eBPF objects.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.attached {
		if err := l.link.Close(); err != nil {
			firstErr = err
		}
		l.link = nil
		l.attached = false
	}
	if l.loaded {
		if err := l.objs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.loaded = false
	}
	if firstErr != nil {
		return fmt.Errorf("classifier: close: %w", firstErr)
	}
	return nil
}

// RulesMap returns the FIREWALL_RULES array map.
func (l *Loader) RulesMap() *ebpf.Map {
	return l.objs.FIREWALLRULES
}

// EventsMap returns the FIREWALL_EVENTS ring buffer map.
func (l *Loader) EventsMap() *ebpf.Map {
	return l.objs.FIREWALLEVENTS
}

// IsAttached reports whether the program is currently attached to an
// interface.
func (l *Loader) IsAttached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}
