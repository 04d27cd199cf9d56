// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"grimm.is/adamfw/internal/schema"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "firewall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutLoadDeleteRule(t *testing.T) {
	s := openTest(t)

	r0 := schema.Rule{ID: 0, Action: schema.ActionDrop, Init: true, Enabled: false, Match: schema.MatchProtocol(1)}
	r5 := schema.Rule{ID: 5, Action: schema.ActionAccept, Init: true, Enabled: true, Match: schema.MatchPort(22)}

	require.NoError(t, s.PutRule(schema.RuleMeta{Name: "icmp"}, r0))
	require.NoError(t, s.PutRule(schema.RuleMeta{Name: "ssh", Description: "allow ssh"}, r5))

	rows, err := s.LoadRules()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, r0, rows[0].Rule)
	require.Equal(t, "icmp", rows[0].Meta.Name)
	require.Equal(t, r5, rows[1].Rule)

	require.NoError(t, s.DeleteRule(0))
	rows, err = s.LoadRules()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, uint32(5), rows[0].Rule.ID)

	// Deleting an already-free slot is idempotent.
	require.NoError(t, s.DeleteRule(0))
}

func TestPutRuleUpsert(t *testing.T) {
	s := openTest(t)

	r := schema.Rule{ID: 1, Action: schema.ActionDrop, Init: true}
	require.NoError(t, s.PutRule(schema.RuleMeta{Name: "v1"}, r))

	r.Enabled = true
	require.NoError(t, s.PutRule(schema.RuleMeta{Name: "v2"}, r))

	rows, err := s.LoadRules()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "v2", rows[0].Meta.Name)
	require.True(t, rows[0].Rule.Enabled)
}

func TestAppendAndQueryEvents(t *testing.T) {
	s := openTest(t)

	t1 := time.Now().Add(-2 * time.Hour).UTC().Round(time.Microsecond)
	t2 := time.Now().Add(-1 * time.Hour).UTC().Round(time.Microsecond)
	t3 := time.Now().UTC().Round(time.Microsecond)

	require.NoError(t, s.AppendEvent(schema.StoredEvent{Time: t1, Event: schema.Event{Kind: schema.EventBlocked, RuleID: 0}}))
	require.NoError(t, s.AppendEvent(schema.StoredEvent{Time: t2, Event: schema.Event{Kind: schema.EventBlocked, RuleID: 1}}))
	require.NoError(t, s.AppendEvent(schema.StoredEvent{Time: t3, Event: schema.Event{Kind: schema.EventBlocked, RuleID: 2}}))

	all, err := s.QueryEvents(EventFilter{All: true})
	require.NoError(t, err)
	require.Len(t, all, 3)

	since, err := s.QueryEvents(EventFilter{Since: t2})
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.Equal(t, uint32(1), since[0].Event.RuleID)
	require.Equal(t, uint32(2), since[1].Event.RuleID)
}
