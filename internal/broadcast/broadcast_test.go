// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package broadcast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New[int](4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(1)
	b.Publish(2)

	require.Equal(t, 1, <-s1.C)
	require.Equal(t, 2, <-s1.C)
	require.Equal(t, 1, <-s2.C)
	require.Equal(t, 2, <-s2.C)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := New[int](2)
	s := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	require.Greater(t, b.Dropped(), 0)
	// The subscriber should still have its buffer full of the most
	// recent values, never stalling the publisher.
	require.Len(t, s.C, 2)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int](4)
	s := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	s.Unsubscribe()
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-s.C
	require.False(t, ok)

	// Publish after unsubscribe must not panic or block.
	b.Publish(42)
}
