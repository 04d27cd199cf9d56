// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"fmt"

	"grimm.is/adamfw/internal/schema"
)

// RuleRecord pairs a Rule with its durable-only metadata, the shape
// returned by GetRule/GetRules.
type RuleRecord struct {
	Meta schema.RuleMeta
	Rule schema.Rule
}

func (rr RuleRecord) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.str(rr.Meta.Name)
	w.str(rr.Meta.Description)
	rb, err := rr.Rule.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.raw(rb)
	return w.bytes(), nil
}

func (rr *RuleRecord) unmarshal(r *reader) error {
	var err error
	if rr.Meta.Name, err = r.str(); err != nil {
		return err
	}
	if rr.Meta.Description, err = r.str(); err != nil {
		return err
	}
	rb, err := r.rawN(schema.RuleSize)
	if err != nil {
		return err
	}
	return rr.Rule.UnmarshalBinary(rb)
}

// RuleChangeKind discriminates the outcome of an enable/disable/toggle
// request.
type RuleChangeKind uint8

const (
	ChangeNoSuchRule RuleChangeKind = iota
	ChangeNoChangeRequired
	ChangeApplied
)

// RuleChange reports the outcome of set_enabled: the resulting Enabled
// state is carried alongside NoChangeRequired and Change.
type RuleChange struct {
	Kind  RuleChangeKind
	State bool
}

func (c RuleChange) marshalInto(w *writer) {
	w.byte(byte(c.Kind))
	if c.Kind != ChangeNoSuchRule {
		w.bool(c.State)
	}
}

func (c *RuleChange) unmarshal(r *reader) error {
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	c.Kind = RuleChangeKind(kb)
	if c.Kind != ChangeNoSuchRule {
		if c.State, err = r.boolVal(); err != nil {
			return err
		}
	}
	return nil
}

// ResponseKind discriminates the active variant of a firewall Response.
type ResponseKind uint8

const (
	RespID ResponseKind = iota
	RespListFull
	RespRules
	RespRule
	RespDoesNotExist
	RespStatus
	RespRuleChange
	RespEvents
)

// Response is the firewall-specific reply to a Request.
type Response struct {
	Kind   ResponseKind
	ID     uint32
	Rules  []RuleRecord
	Rule   RuleRecord
	Status schema.RunStatus
	Change RuleChange
	Events []schema.StoredEvent
}

func (resp Response) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.byte(byte(resp.Kind))
	switch resp.Kind {
	case RespID:
		w.u32(resp.ID)
	case RespListFull, RespDoesNotExist:
		// no payload
	case RespRules:
		w.u32(uint32(len(resp.Rules)))
		for _, rr := range resp.Rules {
			b, err := rr.MarshalBinary()
			if err != nil {
				return nil, err
			}
			w.raw(b)
		}
	case RespRule:
		b, err := resp.Rule.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.raw(b)
	case RespStatus:
		w.byte(byte(resp.Status))
	case RespRuleChange:
		resp.Change.marshalInto(w)
	case RespEvents:
		w.u32(uint32(len(resp.Events)))
		for _, se := range resp.Events {
			b, err := se.MarshalBinary()
			if err != nil {
				return nil, err
			}
			w.raw(b)
		}
	default:
		return nil, fmt.Errorf("wire: unknown response kind %d", resp.Kind)
	}
	return w.bytes(), nil
}

func (resp *Response) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	resp.Kind = ResponseKind(kb)
	switch resp.Kind {
	case RespID:
		if resp.ID, err = r.u32(); err != nil {
			return err
		}
	case RespListFull, RespDoesNotExist:
		// no payload
	case RespRules:
		n, err := r.u32()
		if err != nil {
			return err
		}
		resp.Rules = make([]RuleRecord, n)
		for i := range resp.Rules {
			if err := resp.Rules[i].unmarshal(r); err != nil {
				return err
			}
		}
	case RespRule:
		if err := resp.Rule.unmarshal(r); err != nil {
			return err
		}
	case RespStatus:
		sb, err := r.byteVal()
		if err != nil {
			return err
		}
		resp.Status = schema.RunStatus(sb)
	case RespRuleChange:
		if err := resp.Change.unmarshal(r); err != nil {
			return err
		}
	case RespEvents:
		n, err := r.u32()
		if err != nil {
			return err
		}
		resp.Events = make([]schema.StoredEvent, n)
		for i := range resp.Events {
			b, err := r.rawN(8 + schema.EventSize)
			if err != nil {
				return err
			}
			if err := resp.Events[i].UnmarshalBinary(b); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("wire: unknown response kind %d", resp.Kind)
	}
	return r.done()
}

// LogKind discriminates the active variant of an event-socket record.
// Event is currently the only variant; the tag leaves room to stream
// other log classes over the same socket without breaking framing.
type LogKind uint8

const (
	LogEvent LogKind = iota
)

// Log is the record streamed, one per frame, over the event socket.
type Log struct {
	Kind  LogKind
	Event schema.StoredEvent
}

func (l Log) MarshalBinary() ([]byte, error) {
	w := &writer{}
	w.byte(byte(l.Kind))
	eb, err := l.Event.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.raw(eb)
	return w.bytes(), nil
}

func (l *Log) UnmarshalBinary(b []byte) error {
	r := newReader(b)
	kb, err := r.byteVal()
	if err != nil {
		return err
	}
	l.Kind = LogKind(kb)
	eb, err := r.rawN(8 + schema.EventSize)
	if err != nil {
		return err
	}
	if err := l.Event.UnmarshalBinary(eb); err != nil {
		return err
	}
	return r.done()
}
