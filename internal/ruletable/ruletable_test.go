// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruletable

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/store"
)

type fakeKernelMap struct {
	slots map[uint32]schema.Rule
}

func newFakeKernelMap() *fakeKernelMap { return &fakeKernelMap{slots: make(map[uint32]schema.Rule)} }

func (f *fakeKernelMap) Put(index uint32, rule schema.Rule) error {
	f.slots[index] = rule
	return nil
}

func (f *fakeKernelMap) Delete(index uint32) error {
	delete(f.slots, index)
	return nil
}

func newTestTable(t *testing.T) (*Table, *fakeKernelMap) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "firewall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	km := newFakeKernelMap()
	return New(km, db, nil), km
}

func TestAddAssignsLowestFreeSlotDisabled(t *testing.T) {
	tbl, km := newTestTable(t)

	id, err := tbl.Add(schema.RuleMeta{Name: "icmp"}, schema.Rule{Action: schema.ActionDrop, Match: schema.MatchProtocol(1)})
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)

	_, rule, err := tbl.Get(0)
	require.NoError(t, err)
	require.True(t, rule.Init)
	require.False(t, rule.Enabled)
	require.Equal(t, rule, km.slots[0])
}

func TestAddThenDeleteRestoresPriorState(t *testing.T) {
	tbl, km := newTestTable(t)

	id, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionDrop})
	require.NoError(t, err)

	require.NoError(t, tbl.Delete(id))

	_, _, err = tbl.Get(id)
	require.ErrorIs(t, err, ErrDoesNotExist())
	_, ok := km.slots[id]
	require.False(t, ok)

	// Deleting an already-free slot is a no-op.
	require.NoError(t, tbl.Delete(id))
}

func TestSetEnabledToggleIdempotence(t *testing.T) {
	tbl, _ := newTestTable(t)
	id, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionDrop})
	require.NoError(t, err)

	kind, state, err := tbl.SetEnabled(id, OpToggle)
	require.NoError(t, err)
	require.Equal(t, ChangeApplied, kind)
	require.True(t, state)

	kind, state, err = tbl.SetEnabled(id, OpToggle)
	require.NoError(t, err)
	require.Equal(t, ChangeApplied, kind)
	require.False(t, state)
}

func TestSetEnabledNoChangeRequired(t *testing.T) {
	tbl, _ := newTestTable(t)
	id, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionDrop})
	require.NoError(t, err)

	kind, _, err := tbl.SetEnabled(id, OpDisable)
	require.NoError(t, err)
	require.Equal(t, ChangeNoChangeRequired, kind)
}

func TestSetEnabledNoSuchRule(t *testing.T) {
	tbl, _ := newTestTable(t)
	kind, _, err := tbl.SetEnabled(0, OpEnable)
	require.NoError(t, err)
	require.Equal(t, ChangeNoSuchRule, kind)
}

func TestAddWhenFullReturnsListFull(t *testing.T) {
	tbl, _ := newTestTable(t)
	for i := 0; i < schema.MaxRules; i++ {
		_, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionAccept})
		require.NoError(t, err)
	}

	_, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionAccept})
	require.ErrorIs(t, err, ErrListFull())

	require.NoError(t, tbl.Delete(42))
	id, err := tbl.Add(schema.RuleMeta{}, schema.Rule{Action: schema.ActionAccept})
	require.NoError(t, err)
	require.Equal(t, uint32(42), id)
}

func TestRecoverRepopulatesFromDurableStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "firewall.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)

	km := newFakeKernelMap()
	tbl := New(km, db, nil)

	_, err = tbl.Add(schema.RuleMeta{Name: "a"}, schema.Rule{Action: schema.ActionDrop})
	require.NoError(t, err)
	_, err = tbl.Add(schema.RuleMeta{Name: "b"}, schema.Rule{Action: schema.ActionAccept})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	km2 := newFakeKernelMap()
	tbl2 := New(km2, db2, nil)
	require.NoError(t, tbl2.Recover())

	rows := tbl2.List()
	require.Len(t, rows, 2)
	require.Equal(t, km2.slots[0], rows[0].Rule)
	require.Equal(t, km2.slots[1], rows[1].Rule)
}
