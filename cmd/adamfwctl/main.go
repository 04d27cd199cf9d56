// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command adamfwctl is a thin control-socket client for adamfwd: it
// connects to the control socket, sends a single request, prints the
// response, and exits.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"

	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/wire"
)

func main() {
	socketPath := flag.String("socket", "/run/adam/firewall", "path to the control socket")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("usage: adamfwctl [-socket path] <start|halt|terminate|status|list|events|add|delete|enable|disable|toggle>")
	}

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		log.Fatalf("adamfwctl: connect: %v", err)
	}
	defer conn.Close()

	msg, err := buildMessage(args)
	if err != nil {
		log.Fatalf("adamfwctl: %v", err)
	}

	if err := wire.WriteFrame(conn, msg); err != nil {
		log.Fatalf("adamfwctl: write request: %v", err)
	}
	if !msg.HasResponse() {
		return
	}

	resp, err := wire.ReadResponse(conn)
	if err != nil {
		log.Fatalf("adamfwctl: read response: %v", err)
	}
	printResponse(resp)
}

func buildMessage(args []string) (wire.Message, error) {
	switch args[0] {
	case "start":
		return wire.Message{Kind: wire.MsgStart}, nil
	case "halt":
		return wire.Message{Kind: wire.MsgHalt}, nil
	case "terminate":
		return wire.Message{Kind: wire.MsgTerminate}, nil
	case "status":
		return firewallMessage(wire.Request{Kind: wire.ReqStatus}), nil
	case "list":
		return firewallMessage(wire.Request{Kind: wire.ReqGetRules}), nil
	case "events":
		return firewallMessage(wire.Request{Kind: wire.ReqGetEvents, Query: wire.EventQuery{Kind: wire.EventQueryAll}}), nil
	case "add":
		if len(args) < 4 {
			return wire.Message{}, fmt.Errorf("usage: add <name> <accept|drop> <port>")
		}
		action := schema.ActionAccept
		if args[2] == "drop" {
			action = schema.ActionDrop
		}
		port, err := parsePort(args[3])
		if err != nil {
			return wire.Message{}, err
		}
		return firewallMessage(wire.Request{
			Kind: wire.ReqAddRule,
			Meta: schema.RuleMeta{Name: args[1]},
			Rule: schema.Rule{Action: action, AppliesTo: schema.DirectionDestination, Enabled: true, Match: schema.MatchPort(port)},
		}), nil
	case "delete":
		index, err := indexArg(args)
		if err != nil {
			return wire.Message{}, err
		}
		return firewallMessage(wire.Request{Kind: wire.ReqDeleteRule, Index: index}), nil
	case "enable":
		index, err := indexArg(args)
		if err != nil {
			return wire.Message{}, err
		}
		return firewallMessage(wire.Request{Kind: wire.ReqEnableRule, Index: index}), nil
	case "disable":
		index, err := indexArg(args)
		if err != nil {
			return wire.Message{}, err
		}
		return firewallMessage(wire.Request{Kind: wire.ReqDisableRule, Index: index}), nil
	case "toggle":
		index, err := indexArg(args)
		if err != nil {
			return wire.Message{}, err
		}
		return firewallMessage(wire.Request{Kind: wire.ReqToggleRule, Index: index}), nil
	default:
		return wire.Message{}, fmt.Errorf("unknown command %q", args[0])
	}
}

func firewallMessage(req wire.Request) wire.Message {
	return wire.Message{Kind: wire.MsgFirewall, Firewall: req}
}

func indexArg(args []string) (uint32, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: %s <id>", args[0])
	}
	id, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q: %w", args[1], err)
	}
	return uint32(id), nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	return uint16(v), nil
}

func printResponse(resp wire.Response) {
	switch resp.Kind {
	case wire.RespID:
		fmt.Printf("id=%d\n", resp.ID)
	case wire.RespListFull:
		fmt.Println("error: rule table is full")
	case wire.RespDoesNotExist:
		fmt.Println("error: no such rule")
	case wire.RespStatus:
		fmt.Println(resp.Status.String())
	case wire.RespRuleChange:
		fmt.Printf("change=%d enabled=%v\n", resp.Change.Kind, resp.Change.State)
	case wire.RespRule:
		printRule(resp.Rule)
	case wire.RespRules:
		for _, r := range resp.Rules {
			printRule(r)
		}
	case wire.RespEvents:
		for _, e := range resp.Events {
			fmt.Printf("%s rule=%d addr=%v port=%d\n", e.Time.Format("2006-01-02T15:04:05Z07:00"), e.Event.RuleID, e.Event.Addr, e.Event.Port)
		}
	}
}

func printRule(r wire.RuleRecord) {
	fmt.Printf("id=%d name=%q action=%s applies_to=%s enabled=%v\n",
		r.Rule.ID, r.Meta.Name, r.Rule.Action, r.Rule.AppliesTo, r.Rule.Enabled)
}
