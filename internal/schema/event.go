// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package schema

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EventKind tags the active variant of an Event.
type EventKind uint8

const (
	// EventPass is the default (zero) kind. The classifier in this tree
	// emits only Blocked events; the ingester discards any Pass it reads.
	EventPass EventKind = iota
	// EventBlocked records a rule that caused a DROP verdict.
	EventBlocked
)

// Event is the fixed-layout record the classifier reserves into the
// FIREWALL_EVENTS ring buffer. Pass carries no payload; Blocked carries
// the matching rule's ID and the tested socket address.
type Event struct {
	Kind   EventKind
	RuleID uint32
	Addr   [4]byte
	Port   uint16
}

// EventSize is the encoded byte width of an Event (16 bytes, matching the
// in-kernel struct: 1 + 3 pad + 4 + 4 + 2 + 2 pad).
const EventSize = 16

// MarshalBinary encodes e deterministically.
func (e Event) MarshalBinary() ([]byte, error) {
	b := make([]byte, EventSize)
	b[0] = byte(e.Kind)
	binary.LittleEndian.PutUint32(b[4:8], e.RuleID)
	copy(b[8:12], e.Addr[:])
	binary.LittleEndian.PutUint16(b[12:14], e.Port)
	return b, nil
}

// UnmarshalBinary decodes b into e. b must be exactly EventSize bytes.
func (e *Event) UnmarshalBinary(b []byte) error {
	if len(b) != EventSize {
		return fmt.Errorf("schema: Event.UnmarshalBinary: want %d bytes, got %d", EventSize, len(b))
	}
	e.Kind = EventKind(b[0])
	e.RuleID = binary.LittleEndian.Uint32(b[4:8])
	copy(e.Addr[:], b[8:12])
	e.Port = binary.LittleEndian.Uint16(b[12:14])
	return nil
}

// StoredEvent pairs an Event with the wall-clock timestamp the ingester
// assigned at dequeue time (never assigned in-kernel). This is the shape
// persisted in the durable events table and streamed over the event
// socket as a Log record.
type StoredEvent struct {
	Time  time.Time
	Event Event
}

// MarshalBinary encodes s as an 8-byte little-endian Unix-nanosecond
// timestamp followed by the encoded Event.
func (s StoredEvent) MarshalBinary() ([]byte, error) {
	ev, err := s.Event.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := make([]byte, 8+len(ev))
	binary.LittleEndian.PutUint64(b[0:8], uint64(s.Time.UnixNano()))
	copy(b[8:], ev)
	return b, nil
}

// UnmarshalBinary decodes b into s.
func (s *StoredEvent) UnmarshalBinary(b []byte) error {
	if len(b) != 8+EventSize {
		return fmt.Errorf("schema: StoredEvent.UnmarshalBinary: want %d bytes, got %d", 8+EventSize, len(b))
	}
	nanos := int64(binary.LittleEndian.Uint64(b[0:8]))
	s.Time = time.Unix(0, nanos).UTC()
	return s.Event.UnmarshalBinary(b[8:])
}
