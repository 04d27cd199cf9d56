// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the durable write-behind mirror of the in-kernel rule
// table, plus the append-only event log. It uses modernc.org/sqlite (a
// pure-Go, cgo-free driver) through database/sql, grounded on the
// journal-mode-WAL, busy-timeout sqlite idiom used across this tree's
// other local stores.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/adamfw/internal/errors"
	"grimm.is/adamfw/internal/schema"
)

// Store is the process-wide durable handle: the rules table (one row per
// initialized slot) and the events table (append-only).
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a sqlite database at path with WAL
// journaling and a 5-second busy timeout, and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "store: open")
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	rule_blob BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time INTEGER NOT NULL,
	event_blob BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: init schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RuleRow is a durable rule row: metadata plus the full Rule record.
type RuleRow struct {
	Meta schema.RuleMeta
	Rule schema.Rule
}

// PutRule writes (inserting or replacing) the row for rule.ID.
func (s *Store) PutRule(meta schema.RuleMeta, rule schema.Rule) error {
	blob, err := rule.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: encode rule")
	}
	_, err = s.db.Exec(
		`INSERT INTO rules (id, name, description, rule_blob) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, rule_blob=excluded.rule_blob`,
		rule.ID, meta.Name, meta.Description, blob,
	)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: put rule")
	}
	return nil
}

// DeleteRule removes the durable row for id. A missing row is not an
// error: deleting a free slot is idempotent.
func (s *Store) DeleteRule(id uint32) error {
	if _, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: delete rule")
	}
	return nil
}

// LoadRules returns every durable rule row, ordered by id, for in-kernel
// table recovery at startup.
func (s *Store) LoadRules() ([]RuleRow, error) {
	rows, err := s.db.Query(`SELECT id, name, description, rule_blob FROM rules ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: load rules")
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		var id uint32
		var name, desc string
		var blob []byte
		if err := rows.Scan(&id, &name, &desc, &blob); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan rule row")
		}
		var rule schema.Rule
		if err := rule.UnmarshalBinary(blob); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: decode rule blob")
		}
		out = append(out, RuleRow{Meta: schema.RuleMeta{Name: name, Description: desc}, Rule: rule})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: iterate rules")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Rule.ID < out[j].Rule.ID })
	return out, nil
}

// AppendEvent records se in the append-only events table.
func (s *Store) AppendEvent(se schema.StoredEvent) error {
	blob, err := se.Event.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: encode event")
	}
	_, err = s.db.Exec(`INSERT INTO events (time, event_blob) VALUES (?, ?)`, se.Time.UnixNano(), blob)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "store: append event")
	}
	return nil
}

// EventFilter selects which stored events QueryEvents returns.
type EventFilter struct {
	All   bool
	Since time.Time // zero means unbounded; ignored when All is true
}

// QueryEvents returns stored events in storage (insertion) order,
// filtered per f.
func (s *Store) QueryEvents(f EventFilter) ([]schema.StoredEvent, error) {
	var rows *sql.Rows
	var err error
	if f.All || f.Since.IsZero() {
		rows, err = s.db.Query(`SELECT time, event_blob FROM events ORDER BY id ASC`)
	} else {
		rows, err = s.db.Query(`SELECT time, event_blob FROM events WHERE time >= ? ORDER BY id ASC`, f.Since.UnixNano())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: query events")
	}
	defer rows.Close()

	var out []schema.StoredEvent
	for rows.Next() {
		var nanos int64
		var blob []byte
		if err := rows.Scan(&nanos, &blob); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: scan event row")
		}
		var ev schema.Event
		if err := ev.UnmarshalBinary(blob); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "store: decode event blob")
		}
		out = append(out, schema.StoredEvent{Time: time.Unix(0, nanos).UTC(), Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "store: iterate events")
	}
	return out, nil
}
