// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"fmt"
	"time"

	"grimm.is/adamfw/internal/schema"
)

// MessageKind discriminates the top-level control-socket request.
type MessageKind uint8

const (
	MsgStart MessageKind = iota
	MsgHalt
	MsgTerminate
	MsgFirewall
)

// Message is the top-level request read off the control socket.
// Start/Halt/Terminate carry no payload and produce no Response; Firewall
// wraps a Request that produces exactly one Response, except DeleteRule,
// which produces none.
type Message struct {
	Kind     MessageKind
	Firewall Request
}

// HasResponse reports whether this Message produces a Response frame.
// Start, Halt, Terminate, and DeleteRule are silent by design — the
// client MUST NOT read a response it did not expect.
func (m Message) HasResponse() bool {
	if m.Kind != MsgFirewall {
		return false
	}
	return m.Firewall.Kind != ReqDeleteRule
}

func (m Message) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.byte(byte(m.Kind))
	if m.Kind == MsgFirewall {
		fw, err := m.Firewall.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.raw(fw)
	}
	return w.bytes(), nil
}

func (m *Message) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	m.Kind = MessageKind(kb)
	if m.Kind == MsgFirewall {
		if err := m.Firewall.UnmarshalBinary(r.b[r.pos:]); err != nil {
			return err
		}
		return nil
	}
	return r.done()
}

// RequestKind discriminates a Firewall Request's active verb.
type RequestKind uint8

const (
	ReqAddRule RequestKind = iota
	ReqDeleteRule
	ReqEnableRule
	ReqDisableRule
	ReqToggleRule
	ReqUpdateRule
	ReqGetRule
	ReqGetRules
	ReqStatus
	ReqGetEvents
)

// Request is the firewall-specific control verb and its arguments.
type Request struct {
	Kind  RequestKind
	Index uint32          // DeleteRule, EnableRule, DisableRule, ToggleRule, UpdateRule, GetRule
	Meta  schema.RuleMeta // AddRule, UpdateRule
	Rule  schema.Rule     // AddRule, UpdateRule
	Query EventQuery      // GetEvents
}

func (req Request) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.byte(byte(req.Kind))
	switch req.Kind {
	case ReqAddRule, ReqUpdateRule:
		if req.Kind == ReqUpdateRule {
			w.u32(req.Index)
		}
		w.str(req.Meta.Name)
		w.str(req.Meta.Description)
		rb, err := req.Rule.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.raw(rb)
	case ReqDeleteRule, ReqEnableRule, ReqDisableRule, ReqToggleRule, ReqGetRule:
		w.u32(req.Index)
	case ReqGetEvents:
		qb, err := req.Query.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.raw(qb)
	case ReqGetRules, ReqStatus:
		// no payload
	default:
		return nil, fmt.Errorf("wire: unknown request kind %d", req.Kind)
	}
	return w.bytes(), nil
}

func (req *Request) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	req.Kind = RequestKind(kb)
	switch req.Kind {
	case ReqAddRule, ReqUpdateRule:
		if req.Kind == ReqUpdateRule {
			if req.Index, err = r.u32(); err != nil {
				return err
			}
		}
		if req.Meta.Name, err = r.str(); err != nil {
			return err
		}
		if req.Meta.Description, err = r.str(); err != nil {
			return err
		}
		rb, err := r.rawN(schema.RuleSize)
		if err != nil {
			return err
		}
		if err := req.Rule.UnmarshalBinary(rb); err != nil {
			return err
		}
	case ReqDeleteRule, ReqEnableRule, ReqDisableRule, ReqToggleRule, ReqGetRule:
		if req.Index, err = r.u32(); err != nil {
			return err
		}
	case ReqGetEvents:
		if err := req.Query.UnmarshalBinary(r.b[r.pos:]); err != nil {
			return err
		}
		return nil
	case ReqGetRules, ReqStatus:
		// no payload
	default:
		return fmt.Errorf("wire: unknown request kind %d", req.Kind)
	}
	return r.done()
}

// EventQueryKind discriminates the active filter of an EventQuery.
type EventQueryKind uint8

const (
	EventQueryAll EventQueryKind = iota
	EventQueryLast
	EventQuerySince
)

// EventQuery selects which stored events GetEvents should return.
type EventQuery struct {
	Kind     EventQueryKind
	Duration time.Duration // EventQueryLast
	Since    time.Time     // EventQuerySince
}

func (q EventQuery) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.byte(byte(q.Kind))
	switch q.Kind {
	case EventQueryLast:
		w.i64(int64(q.Duration))
	case EventQuerySince:
		encodeTime(w, q.Since)
	case EventQueryAll:
	default:
		return nil, fmt.Errorf("wire: unknown event query kind %d", q.Kind)
	}
	return w.bytes(), nil
}

func (q *EventQuery) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	q.Kind = EventQueryKind(kb)
	switch q.Kind {
	case EventQueryLast:
		v, err := r.i64()
		if err != nil {
			return err
		}
		q.Duration = time.Duration(v)
	case EventQuerySince:
		q.Since, err = decodeTime(r)
		if err != nil {
			return err
		}
	case EventQueryAll:
	default:
		return fmt.Errorf("wire: unknown event query kind %d", q.Kind)
	}
	return r.done()
}
