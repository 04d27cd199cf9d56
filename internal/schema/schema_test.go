// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuleRoundTrip(t *testing.T) {
	cases := []Rule{
		{},
		{ID: 0, Action: ActionDrop, AppliesTo: DirectionSource, Enabled: true, Init: true, Match: MatchProtocol(1)},
		{ID: 99, Action: ActionAccept, AppliesTo: DirectionDestination, Enabled: false, Init: true, Match: MatchAddr([4]byte{10, 0, 0, 5})},
		{ID: 42, Action: ActionDrop, AppliesTo: DirectionSource, Enabled: true, Init: true, Match: MatchSocket([4]byte{192, 168, 1, 1}, 443)},
		{ID: 1, Action: ActionDrop, AppliesTo: DirectionDestination, Enabled: true, Init: true, Match: MatchPort(22)},
	}

	for _, want := range cases {
		b, err := want.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, b, RuleSize)

		var got Rule
		require.NoError(t, got.UnmarshalBinary(b))
		require.Equal(t, want, got)
	}
}

func TestRuleUnmarshalWrongSize(t *testing.T) {
	var r Rule
	require.Error(t, r.UnmarshalBinary(make([]byte, RuleSize-1)))
}

func TestEventRoundTrip(t *testing.T) {
	cases := []Event{
		{Kind: EventPass},
		{Kind: EventBlocked, RuleID: 7, Addr: [4]byte{10, 0, 0, 5}, Port: 0},
	}

	for _, want := range cases {
		b, err := want.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, b, EventSize)

		var got Event
		require.NoError(t, got.UnmarshalBinary(b))
		require.Equal(t, want, got)
	}
}

func TestStoredEventRoundTrip(t *testing.T) {
	want := StoredEvent{
		Time:  time.Now().UTC().Round(time.Nanosecond),
		Event: Event{Kind: EventBlocked, RuleID: 3, Addr: [4]byte{1, 2, 3, 4}, Port: 80},
	}

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got StoredEvent
	require.NoError(t, got.UnmarshalBinary(b))
	require.True(t, want.Time.Equal(got.Time))
	require.Equal(t, want.Event, got.Event)
}

func TestLifecycleStatus(t *testing.T) {
	require.Equal(t, StatusStopped, Loaded.Status())
	require.Equal(t, StatusRunning, Started.Status())
	require.Equal(t, StatusStopped, Terminated.Status())
}
