// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipc

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"grimm.is/adamfw/internal/broadcast"
	"grimm.is/adamfw/internal/lifecycle"
	"grimm.is/adamfw/internal/logging"
	"grimm.is/adamfw/internal/ruletable"
	"grimm.is/adamfw/internal/schema"
	"grimm.is/adamfw/internal/store"
	"grimm.is/adamfw/internal/wire"
)

type noopKernelMap struct{}

func (noopKernelMap) Put(uint32, schema.Rule) error { return nil }
func (noopKernelMap) Delete(uint32) error           { return nil }

type noopClassifier struct{}

func (noopClassifier) Attach(string) (string, error) { return "driver", nil }
func (noopClassifier) Detach() error                 { return nil }

func newTestServer(t *testing.T) (*Server, *broadcast.Broadcaster[schema.StoredEvent]) {
	t.Helper()
	log, err := logging.New(logging.Config{Level: -10, Output: io.Discard})
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(t.TempDir(), "firewall.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	table := ruletable.New(noopKernelMap{}, db, nil)
	coord := lifecycle.New(noopClassifier{}, "eth0", log)
	feed := broadcast.New[schema.StoredEvent](8)

	return New(table, coord, feed, nil, log), feed
}

func dialUnix(t *testing.T, lis net.Listener) net.Conn {
	t.Helper()
	conn, err := net.Dial(lis.Addr().Network(), lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestControlAddGetDeleteRule(t *testing.T) {
	s, _ := newTestServer(t)
	lis, err := s.ListenControl(filepath.Join(t.TempDir(), "firewall"))
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	conn := dialUnix(t, lis)

	addMsg := wire.Message{Kind: wire.MsgFirewall, Firewall: wire.Request{
		Kind: wire.ReqAddRule,
		Meta: schema.RuleMeta{Name: "ssh"},
		Rule: schema.Rule{Action: schema.ActionDrop, AppliesTo: schema.DirectionDestination, Match: schema.MatchPort(22)},
	}}
	require.NoError(t, wire.WriteFrame(conn, addMsg))
	resp, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	require.Equal(t, wire.RespID, resp.Kind)
	id := resp.ID

	getMsg := wire.Message{Kind: wire.MsgFirewall, Firewall: wire.Request{Kind: wire.ReqGetRule, Index: id}}
	require.NoError(t, wire.WriteFrame(conn, getMsg))
	resp, err = wire.ReadResponse(conn)
	require.NoError(t, err)
	require.Equal(t, wire.RespRule, resp.Kind)
	require.Equal(t, "ssh", resp.Rule.Meta.Name)

	delMsg := wire.Message{Kind: wire.MsgFirewall, Firewall: wire.Request{Kind: wire.ReqDeleteRule, Index: id}}
	require.NoError(t, wire.WriteFrame(conn, delMsg))

	// DeleteRule has no response; confirm the rule is gone via a follow-up
	// GetRule round trip on the same connection.
	require.NoError(t, wire.WriteFrame(conn, getMsg))
	resp, err = wire.ReadResponse(conn)
	require.NoError(t, err)
	require.Equal(t, wire.RespDoesNotExist, resp.Kind)
}

func TestControlStatusReflectsLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	lis, err := s.ListenControl(filepath.Join(t.TempDir(), "firewall"))
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	conn := dialUnix(t, lis)

	statusMsg := wire.Message{Kind: wire.MsgFirewall, Firewall: wire.Request{Kind: wire.ReqStatus}}
	require.NoError(t, wire.WriteFrame(conn, statusMsg))
	resp, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	require.Equal(t, schema.StatusStopped, resp.Status)

	require.NoError(t, wire.WriteFrame(conn, wire.Message{Kind: wire.MsgStart}))

	require.NoError(t, wire.WriteFrame(conn, statusMsg))
	resp, err = wire.ReadResponse(conn)
	require.NoError(t, err)
	require.Equal(t, schema.StatusRunning, resp.Status)
}

func TestEventSocketStreamsPublishedEvents(t *testing.T) {
	s, feed := newTestServer(t)
	lis, err := s.ListenEvents(filepath.Join(t.TempDir(), "firewall_events"))
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	conn := dialUnix(t, lis)

	require.Eventually(t, func() bool { return feed.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	feed.Publish(schema.StoredEvent{Time: time.Unix(100, 0), Event: schema.Event{Kind: schema.EventBlocked, RuleID: 7}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	l, err := wire.ReadLog(conn)
	require.NoError(t, err)
	require.Equal(t, uint32(7), l.Event.Event.RuleID)
}
