// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package schema defines the data types shared byte-for-byte between the
// in-kernel classifier, the durable store, and the wire protocol: Rule,
// Event, and their constituent enums. Every type here carries a
// deterministic, fixed-width binary encoding via MarshalBinary/
// UnmarshalBinary so that one definition serves all three consumers —
// changing a field's width or order here changes it everywhere at once.
package schema

import (
	"encoding/binary"
	"fmt"
)

// MaxRules is the fixed capacity of the in-kernel rule table.
const MaxRules = 100

// Action is the verdict applied when a rule matches.
type Action uint8

const (
	ActionAccept Action = iota
	ActionDrop
)

func (a Action) String() string {
	if a == ActionDrop {
		return "drop"
	}
	return "accept"
}

// Direction selects which side of a packet a Match is tested against.
type Direction uint8

const (
	DirectionSource Direction = iota
	DirectionDestination
)

func (d Direction) String() string {
	if d == DirectionDestination {
		return "destination"
	}
	return "source"
}

// MatchKind tags the active field of a Match.
type MatchKind uint8

const (
	// MatchKindProtocol matches the IP protocol number (e.g. ICMP, TCP, UDP).
	MatchKindProtocol MatchKind = iota
	// MatchKindAddr matches a bare IPv4 address.
	MatchKindAddr
	// MatchKindSocket matches an IPv4 address plus a port.
	MatchKindSocket
	// MatchKindPort matches a TCP port alone; requires the tail-called
	// transport-aware classifier since the base program never parses TCP.
	MatchKindPort
)

// Match is the tagged union of conditions a Rule may test. Its layout is
// fixed at 12 bytes so that it can sit inline inside the in-kernel Rule
// struct without indirection.
type Match struct {
	Kind     MatchKind
	_        [3]byte // padding to keep Addr 4-byte aligned
	Addr     [4]byte // IPv4 address, used by MatchKindAddr/MatchKindSocket
	Port     uint16  // used by MatchKindSocket/MatchKindPort
	Protocol uint8   // IP protocol number, used by MatchKindProtocol
	_        byte    // padding
}

const matchSize = 12

// MatchProtocol builds a Match that tests the IP protocol number.
func MatchProtocol(proto uint8) Match {
	return Match{Kind: MatchKindProtocol, Protocol: proto}
}

// MatchAddr builds a Match that tests a bare IPv4 address.
func MatchAddr(addr [4]byte) Match {
	return Match{Kind: MatchKindAddr, Addr: addr}
}

// MatchSocket builds a Match that tests an IPv4 address and port.
func MatchSocket(addr [4]byte, port uint16) Match {
	return Match{Kind: MatchKindSocket, Addr: addr, Port: port}
}

// MatchPort builds a Match that tests a TCP port alone.
func MatchPort(port uint16) Match {
	return Match{Kind: MatchKindPort, Port: port}
}

func (m Match) marshalInto(b []byte) {
	b[0] = byte(m.Kind)
	copy(b[4:8], m.Addr[:])
	binary.LittleEndian.PutUint16(b[8:10], m.Port)
	b[10] = m.Protocol
}

func (m *Match) unmarshalFrom(b []byte) {
	m.Kind = MatchKind(b[0])
	copy(m.Addr[:], b[4:8])
	m.Port = binary.LittleEndian.Uint16(b[8:10])
	m.Protocol = b[10]
}

// Rule is the fixed-layout in-kernel rule record. It is stored densely in
// the FIREWALL_RULES array map, indexed by ID. Init=false marks a free
// slot; the classifier never inspects the other fields of a free slot.
type Rule struct {
	ID        uint32
	Action    Action
	AppliesTo Direction
	Enabled   bool
	Init      bool
	Match     Match
}

// RuleSize is the encoded byte width of a Rule, matching the in-kernel
// struct layout exactly (20 bytes: 4 + 4 + 12).
const RuleSize = 4 + 4 + matchSize

// MarshalBinary encodes r deterministically. Implementing
// encoding.BinaryMarshaler lets github.com/cilium/ebpf serialize Rule
// directly on map Update/Lookup, so this single definition backs the
// kernel map, the durable rule_blob column, and the wire Rule payload.
func (r Rule) MarshalBinary() ([]byte, error) {
	b := make([]byte, RuleSize)
	binary.LittleEndian.PutUint32(b[0:4], r.ID)
	b[4] = byte(r.Action)
	b[5] = byte(r.AppliesTo)
	if r.Enabled {
		b[6] = 1
	}
	if r.Init {
		b[7] = 1
	}
	r.Match.marshalInto(b[8:20])
	return b, nil
}

// UnmarshalBinary decodes b into r. b must be exactly RuleSize bytes.
func (r *Rule) UnmarshalBinary(b []byte) error {
	if len(b) != RuleSize {
		return fmt.Errorf("schema: Rule.UnmarshalBinary: want %d bytes, got %d", RuleSize, len(b))
	}
	r.ID = binary.LittleEndian.Uint32(b[0:4])
	r.Action = Action(b[4])
	r.AppliesTo = Direction(b[5])
	r.Enabled = b[6] != 0
	r.Init = b[7] != 0
	r.Match.unmarshalFrom(b[8:20])
	return nil
}

// RuleMeta holds the out-of-band, durable-only fields the classifier
// never reads: human-readable name/description, keyed alongside the
// rule's durable row.
type RuleMeta struct {
	Name        string
	Description string
}
