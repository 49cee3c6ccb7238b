// Copyright (c) 2026 The Veil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists the ledger event journal in sqlite.
package eventdb

import (
	"context"
	"database/sql"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/veilfi/veil/ledger/events"
	"github.com/veilfi/veil/veil"
)

const eventTableSchema = `
create table if not exists event (
	seq integer primary key autoincrement,
	blockNumber integer,
	blockTime integer,
	engine blob,
	name text,
	topic0 blob,
	topic1 blob,
	topic2 blob
);

CREATE INDEX if not exists engineIndex on event(engine);
CREATE INDEX if not exists nameIndex on event(name);
CREATE INDEX if not exists blockNumberIndex on event(blockNumber);
`

const maxTopics = 3

// OrderType order of filtered results.
type OrderType string

const (
	ASC  OrderType = "ASC"
	DESC OrderType = "DESC"
)

// Range block number range, both bounds inclusive.
type Range struct {
	From uint64
	To   uint64
}

// Options paging options.
type Options struct {
	Offset uint64
	Limit  uint64
}

// Filter event query criteria. Zero fields match everything.
type Filter struct {
	Name   string
	Engine *veil.Address
	Range  *Range
	Order  OrderType
	Opts   *Options
}

// EventDB the sqlite-backed event journal. Implements events.Emitter.
type EventDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open an event db at the given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &EventDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close close the event db.
func (db *EventDB) Close() error {
	return db.db.Close()
}

// Path returns the db file path.
func (db *EventDB) Path() string {
	return db.path
}

// Emit implements events.Emitter.
func (db *EventDB) Emit(ev *events.Event) error {
	if len(ev.Topics) > maxTopics {
		return fmt.Errorf("eventdb: too many topics (%d)", len(ev.Topics))
	}
	topics := make([]interface{}, maxTopics)
	for i, t := range ev.Topics {
		topics[i] = t.Bytes()
	}
	args := append([]interface{}{
		ev.BlockNumber,
		ev.BlockTime,
		ev.Engine.Bytes(),
		ev.Name,
	}, topics...)
	_, err := db.db.Exec(
		"INSERT INTO event(blockNumber, blockTime, engine, name, topic0, topic1, topic2) VALUES(?,?,?,?,?,?,?)",
		args...)
	return err
}

// Filter queries recorded events.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*events.Event, error) {
	if filter == nil {
		return db.query(ctx, "SELECT * FROM event ORDER BY seq ASC")
	}
	var args []interface{}
	stmt := "SELECT * FROM event WHERE 1"
	if filter.Name != "" {
		args = append(args, filter.Name)
		stmt += " AND name = ?"
	}
	if filter.Engine != nil {
		args = append(args, filter.Engine.Bytes())
		stmt += " AND engine = ?"
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND blockNumber >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND blockNumber <= ?"
		}
	}
	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter.Opts != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Opts.Offset, filter.Opts.Limit)
	}
	return db.query(ctx, stmt, args...)
}

func (db *EventDB) query(ctx context.Context, stmt string, args ...interface{}) ([]*events.Event, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var (
			seq         uint64
			blockNumber uint64
			blockTime   uint64
			engine      []byte
			name        string
			topics      [maxTopics][]byte
		)
		if err := rows.Scan(
			&seq,
			&blockNumber,
			&blockTime,
			&engine,
			&name,
			&topics[0],
			&topics[1],
			&topics[2],
		); err != nil {
			return nil, err
		}
		ev := &events.Event{
			BlockNumber: blockNumber,
			BlockTime:   blockTime,
			Engine:      veil.BytesToAddress(engine),
			Name:        name,
		}
		for _, t := range topics {
			if t == nil {
				break
			}
			ev.Topics = append(ev.Topics, veil.BytesToBytes32(t))
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
