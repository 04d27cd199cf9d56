// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classifier

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"grimm.is/adamfw/internal/errors"
	"grimm.is/adamfw/internal/schema"
)

// KernelRules adapts a Loader's FIREWALL_RULES map to ruletable.KernelMap.
// schema.Rule implements encoding.BinaryMarshaler/Unmarshaler, so
// cilium/ebpf's Map.Put/Delete accept it directly as the map value.
type KernelRules struct {
	m *ebpf.Map
}

// NewKernelRules wraps l's rules map for use by a rule table synchronizer.
func NewKernelRules(l *Loader) *KernelRules {
	return &KernelRules{m: l.RulesMap()}
}

// Put writes rule into the array map at index.
func (k *KernelRules) Put(index uint32, rule schema.Rule) error {
	if err := k.m.Put(index, rule); err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "classifier: rules map put[%d]", index)
	}
	return nil
}

// Delete resets index to its zero value. The array map has no concept of
// an absent entry, so deletion writes a zeroed (Init=false) rule rather
// than removing a key.
func (k *KernelRules) Delete(index uint32) error {
	if err := k.m.Put(index, schema.Rule{}); err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "classifier: rules map delete[%d]", index)
	}
	return nil
}

// Lifecycle adapts a Loader to lifecycle.Classifier, translating the
// XDPAttachFlags mode Loader.Attach reports into the human-readable
// string the coordinator logs.
type Lifecycle struct {
	l *Loader
}

// NewLifecycle wraps l for use by a lifecycle coordinator.
func NewLifecycle(l *Loader) *Lifecycle {
	return &Lifecycle{l: l}
}

func (a *Lifecycle) Attach(iface string) (string, error) {
	mode, err := a.l.Attach(iface)
	if err != nil {
		return "", errors.WithInterface(err, iface)
	}
	return attachModeName(mode), nil
}

func (a *Lifecycle) Detach() error {
	return a.l.Detach()
}

func attachModeName(mode link.XDPAttachFlags) string {
	switch mode {
	case link.XDPDriverMode:
		return "driver"
	case link.XDPGenericMode:
		return "generic"
	default:
		return "unknown"
	}
}
