// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ruletable implements the rule table synchronizer: the
// authoritative id -> Rule mapping, kept consistent between the
// in-kernel FIREWALL_RULES map and the durable rules table.
package ruletable

import (
	"sync"
	"time"

	"grimm.is/adamfw/internal/errors"
	"grimm.is/adamfw/internal/metrics"
	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/store"
)

// KernelMap abstracts the in-kernel FIREWALL_RULES array so the
// synchronizer's policy logic is exercisable without a loaded eBPF
// program. classifier.Loader's rule-table wrapper implements this over
// the real map.
type KernelMap interface {
	Put(index uint32, rule schema.Rule) error
	Delete(index uint32) error
}

// ChangeKind reports the outcome of a set_enabled request.
type ChangeKind int

const (
	ChangeNoSuchRule ChangeKind = iota
	ChangeNoChangeRequired
	ChangeApplied
)

// EnabledOp selects the desired transition for set_enabled.
type EnabledOp int

const (
	OpEnable EnabledOp = iota
	OpDisable
	OpToggle
)

var errListFull = errors.New(errors.KindConflict, "ruletable: no free slot")
var errDoesNotExist = errors.New(errors.KindNotFound, "ruletable: no such rule")

// ErrListFull is returned by Add when every slot in [0, MaxRules) is in
// use.
func ErrListFull() error { return errListFull }

// ErrDoesNotExist is returned by Get for an uninitialized slot.
func ErrDoesNotExist() error { return errDoesNotExist }

// Table is the rule table synchronizer: the single in-process owner of
// the id -> Rule mapping. All mutating methods write through to both the
// kernel map and the durable store before returning.
type Table struct {
	mu      sync.Mutex
	kernel  KernelMap
	db      *store.Store
	metrics *metrics.Metrics
	slots   [schema.MaxRules]slot
}

type slot struct {
	meta schema.RuleMeta
	rule schema.Rule
}

// New creates an empty Table bound to kernel and db. Call Recover before
// serving requests to repopulate it from durable storage.
func New(kernel KernelMap, db *store.Store, m *metrics.Metrics) *Table {
	return &Table{kernel: kernel, db: db, metrics: m}
}

// Recover reads every durable row and repopulates both the in-memory
// mirror and the in-kernel table at its stored index, so that a restart
// reconstructs the pre-shutdown table slot-for-slot.
func (t *Table) Recover() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.LoadRules()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Rule.ID >= schema.MaxRules {
			continue
		}
		t.slots[row.Rule.ID] = slot{meta: row.Meta, rule: row.Rule}
		if err := t.kernel.Put(row.Rule.ID, row.Rule); err != nil {
			return errors.WithRuleIndex(errors.Wrap(err, errors.KindUnavailable, "ruletable: recover kernel write"), row.Rule.ID)
		}
	}
	t.observeActiveCount()
	return nil
}

func (t *Table) observeActiveCount() {
	if t.metrics == nil {
		return
	}
	n := 0
	for i := range t.slots {
		if t.slots[i].rule.Init {
			n++
		}
	}
	t.metrics.RulesActive.Set(float64(n))
}

// Add finds the lowest free slot, assigns it to rule (init=true,
// enabled=false regardless of what the caller passed — added rules are
// off by default), writes through to the kernel and durable store, and
// returns the chosen index.
func (t *Table) Add(meta schema.RuleMeta, rule schema.Rule) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.slots {
		if !t.slots[i].rule.Init {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, errListFull
	}

	rule.ID = uint32(idx)
	rule.Init = true
	rule.Enabled = false

	if err := t.kernel.Put(rule.ID, rule); err != nil {
		return 0, errors.WithRuleIndex(errors.Wrap(err, errors.KindUnavailable, "ruletable: add kernel write"), rule.ID)
	}
	if err := t.db.PutRule(meta, rule); err != nil {
		// Durable-write failure is fatal for the request: the caller
		// surfaces this up to process exit per the durability invariant.
		return 0, errors.WithRuleIndex(err, rule.ID)
	}

	t.slots[idx] = slot{meta: meta, rule: rule}
	if t.metrics != nil {
		t.metrics.RuleTableWrites.WithLabelValues("add").Inc()
	}
	t.observeActiveCount()
	return rule.ID, nil
}

// Delete clears slot i if initialized. Deleting a free or out-of-range
// slot is a no-op, matching the documented idempotent-delete convention.
func (t *Table) Delete(i uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i >= schema.MaxRules || !t.slots[i].rule.Init {
		return nil
	}

	if err := t.kernel.Delete(i); err != nil {
		return errors.WithRuleIndex(errors.Wrap(err, errors.KindUnavailable, "ruletable: delete kernel write"), i)
	}
	if err := t.db.DeleteRule(i); err != nil {
		return errors.WithRuleIndex(err, i)
	}

	t.slots[i] = slot{}
	if t.metrics != nil {
		t.metrics.RuleTableWrites.WithLabelValues("delete").Inc()
	}
	t.observeActiveCount()
	return nil
}

// SetEnabled applies op to slot i's Enabled flag. NoChangeRequired is
// reported (with no durable write) when the desired state already
// holds.
func (t *Table) SetEnabled(i uint32, op EnabledOp) (ChangeKind, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i >= schema.MaxRules || !t.slots[i].rule.Init {
		return ChangeNoSuchRule, false, nil
	}

	cur := t.slots[i].rule.Enabled
	var want bool
	switch op {
	case OpEnable:
		want = true
	case OpDisable:
		want = false
	case OpToggle:
		want = !cur
	}

	if want == cur {
		return ChangeNoChangeRequired, cur, nil
	}

	rule := t.slots[i].rule
	rule.Enabled = want
	if err := t.kernel.Put(i, rule); err != nil {
		return 0, false, errors.WithRuleIndex(errors.Wrap(err, errors.KindUnavailable, "ruletable: set_enabled kernel write"), i)
	}
	if err := t.db.PutRule(t.slots[i].meta, rule); err != nil {
		return 0, false, errors.WithRuleIndex(err, i)
	}
	t.slots[i].rule = rule

	if t.metrics != nil {
		t.metrics.RuleTableWrites.WithLabelValues("set_enabled").Inc()
	}
	return ChangeApplied, want, nil
}

// Update overwrites slot i's match/action/applies_to while preserving
// its index and Init/Enabled state.
func (t *Table) Update(i uint32, meta schema.RuleMeta, rule schema.Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i >= schema.MaxRules || !t.slots[i].rule.Init {
		return errDoesNotExist
	}

	rule.ID = i
	rule.Init = true
	rule.Enabled = t.slots[i].rule.Enabled

	if err := t.kernel.Put(i, rule); err != nil {
		return errors.WithRuleIndex(errors.Wrap(err, errors.KindUnavailable, "ruletable: update kernel write"), i)
	}
	if err := t.db.PutRule(meta, rule); err != nil {
		return errors.WithRuleIndex(err, i)
	}
	t.slots[i] = slot{meta: meta, rule: rule}

	if t.metrics != nil {
		t.metrics.RuleTableWrites.WithLabelValues("update").Inc()
	}
	return nil
}

// Get returns the rule and metadata at slot i.
func (t *Table) Get(i uint32) (schema.RuleMeta, schema.Rule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i >= schema.MaxRules || !t.slots[i].rule.Init {
		return schema.RuleMeta{}, schema.Rule{}, errDoesNotExist
	}
	return t.slots[i].meta, t.slots[i].rule, nil
}

// List returns every initialized slot's rule and metadata, ordered by
// index.
func (t *Table) List() []store.RuleRow {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []store.RuleRow
	for i := range t.slots {
		if t.slots[i].rule.Init {
			out = append(out, store.RuleRow{Meta: t.slots[i].meta, Rule: t.slots[i].rule})
		}
	}
	return out
}

// EventQueryKind mirrors the three event-query filters from the wire
// protocol without importing the wire package, keeping ruletable usable
// independent of wire framing.
type EventQueryKind int

const (
	EventQueryAll EventQueryKind = iota
	EventQueryLast
	EventQuerySince
)

// QueryEvents returns durable events matching kind. For EventQueryLast,
// duration is how far back from now to look; for EventQuerySince, since is
// the earliest timestamp returned. The argument kind does not use is
// ignored.
func (t *Table) QueryEvents(kind EventQueryKind, duration time.Duration, since time.Time) ([]schema.StoredEvent, error) {
	switch kind {
	case EventQueryAll:
		return t.db.QueryEvents(store.EventFilter{All: true})
	case EventQueryLast:
		return t.db.QueryEvents(store.EventFilter{Since: time.Now().Add(-duration)})
	case EventQuerySince:
		return t.db.QueryEvents(store.EventFilter{Since: since})
	default:
		return nil, errors.Errorf(errors.KindValidation, "ruletable: unknown event query kind %d", kind)
	}
}
