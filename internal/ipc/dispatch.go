// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipc

import (
	"errors"

	"grimm.is/adamfw/internal/ruletable"
	"grimm.is/adamfw/internal/wire"
)

// dispatch routes msg to the lifecycle coordinator or rule table and
// builds the Response, if any. A non-nil fatal return indicates a
// durable-storage or kernel-map write failure the caller should treat as
// unrecoverable.
func (s *Server) dispatch(msg wire.Message) (wire.Response, error) {
	switch msg.Kind {
	case wire.MsgStart:
		if err := s.coordinator.Start(); err != nil {
			s.log.Error("start failed", "error", err)
		}
		return wire.Response{}, nil
	case wire.MsgHalt:
		if err := s.coordinator.Halt(); err != nil {
			s.log.Error("halt failed", "error", err)
		}
		return wire.Response{}, nil
	case wire.MsgTerminate:
		if err := s.coordinator.Terminate(); err != nil {
			s.log.Error("terminate failed", "error", err)
		}
		return wire.Response{}, nil
	case wire.MsgFirewall:
		return s.dispatchRequest(msg.Firewall)
	default:
		return wire.Response{}, nil
	}
}

func (s *Server) dispatchRequest(req wire.Request) (wire.Response, error) {
	switch req.Kind {
	case wire.ReqAddRule:
		id, err := s.table.Add(req.Meta, req.Rule)
		if errors.Is(err, ruletable.ErrListFull()) {
			return wire.Response{Kind: wire.RespListFull}, nil
		}
		if err != nil {
			return wire.Response{}, err
		}
		return wire.Response{Kind: wire.RespID, ID: id}, nil

	case wire.ReqDeleteRule:
		if err := s.table.Delete(req.Index); err != nil {
			return wire.Response{}, err
		}
		return wire.Response{}, nil

	case wire.ReqEnableRule:
		return s.dispatchSetEnabled(req.Index, ruletable.OpEnable)
	case wire.ReqDisableRule:
		return s.dispatchSetEnabled(req.Index, ruletable.OpDisable)
	case wire.ReqToggleRule:
		return s.dispatchSetEnabled(req.Index, ruletable.OpToggle)

	case wire.ReqUpdateRule:
		if err := s.table.Update(req.Index, req.Meta, req.Rule); err != nil {
			if errors.Is(err, ruletable.ErrDoesNotExist()) {
				return wire.Response{Kind: wire.RespDoesNotExist}, nil
			}
			return wire.Response{}, err
		}
		return wire.Response{Kind: wire.RespID, ID: req.Index}, nil

	case wire.ReqGetRule:
		meta, rule, err := s.table.Get(req.Index)
		if errors.Is(err, ruletable.ErrDoesNotExist()) {
			return wire.Response{Kind: wire.RespDoesNotExist}, nil
		}
		if err != nil {
			return wire.Response{}, err
		}
		return wire.Response{Kind: wire.RespRule, Rule: wire.RuleRecord{Meta: meta, Rule: rule}}, nil

	case wire.ReqGetRules:
		rows := s.table.List()
		records := make([]wire.RuleRecord, len(rows))
		for i, row := range rows {
			records[i] = wire.RuleRecord{Meta: row.Meta, Rule: row.Rule}
		}
		return wire.Response{Kind: wire.RespRules, Rules: records}, nil

	case wire.ReqStatus:
		return wire.Response{Kind: wire.RespStatus, Status: s.coordinator.State().Status()}, nil

	case wire.ReqGetEvents:
		events, err := s.table.QueryEvents(ruletable.EventQueryKind(req.Query.Kind), req.Query.Duration, req.Query.Since)
		if err != nil {
			return wire.Response{}, err
		}
		return wire.Response{Kind: wire.RespEvents, Events: events}, nil

	default:
		return wire.Response{}, nil
	}
}

func (s *Server) dispatchSetEnabled(index uint32, op ruletable.EnabledOp) (wire.Response, error) {
	kind, state, err := s.table.SetEnabled(index, op)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.Response{Kind: wire.RespRuleChange, Change: wire.RuleChange{
		Kind:  wire.RuleChangeKind(kind),
		State: state,
	}}, nil
}
