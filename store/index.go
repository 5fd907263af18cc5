/*
DESCRIPTION
  index.go provides the SQLite index over stored artifacts, backing the
  listing queries of the HTTP API without directory globbing.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package store

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DaySummary describes one timelapse day bucket.
type DaySummary struct {
	Date   string `json:"date"`
	Frames int    `json:"frames"`
	Sealed bool   `json:"sealed"`
}

// Capture describes one stored timelapse frame.
type Capture struct {
	Seq   int       `json:"seq"`
	Path  string    `json:"path"`
	Taken time.Time `json:"taken"`
}

// Event is a finalized motion event record.
type Event struct {
	ID         int64     `json:"id"`
	Time       time.Time `json:"time"`
	Area       int       `json:"area"`
	FrameCount int       `json:"frame_count"`
	Dir        string    `json:"-"`
}

const schema = `
CREATE TABLE IF NOT EXISTS timelapse (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	seq INTEGER NOT NULL,
	path TEXT NOT NULL,
	taken INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS timelapse_date ON timelapse (date);
CREATE TABLE IF NOT EXISTS timelapse_days (
	date TEXT PRIMARY KEY,
	sealed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS motion_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken INTEGER NOT NULL,
	area INTEGER NOT NULL,
	frames INTEGER NOT NULL,
	dir TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS composites (
	body TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	since INTEGER NOT NULL
);
`

// index wraps the SQLite handle. SQLite serializes writers, but a mutex
// keeps read-modify-write sequences such as seq allocation atomic across
// goroutines.
type index struct {
	mu sync.Mutex
	db *sql.DB
}

func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not apply schema")
	}
	return &index{db: db}, nil
}

func (x *index) close() error { return x.db.Close() }

func (x *index) daySealed(date string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var sealed bool
	err := x.db.QueryRow(`SELECT sealed FROM timelapse_days WHERE date = ?`, date).Scan(&sealed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return sealed, errors.Wrap(err, "could not query day")
}

func (x *index) nextTimelapseSeq(date string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var seq sql.NullInt64
	err := x.db.QueryRow(`SELECT MAX(seq) FROM timelapse WHERE date = ?`, date).Scan(&seq)
	if err != nil {
		return 0, errors.Wrap(err, "could not allocate sequence")
	}
	if !seq.Valid {
		return 0, nil
	}
	return int(seq.Int64) + 1, nil
}

func (x *index) insertTimelapse(date string, seq int, path string, taken time.Time) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, err := x.db.Exec(`INSERT OR IGNORE INTO timelapse_days (date) VALUES (?)`, date); err != nil {
		return errors.Wrap(err, "could not record day")
	}
	_, err := x.db.Exec(`INSERT INTO timelapse (date, seq, path, taken) VALUES (?, ?, ?, ?)`,
		date, seq, path, taken.Unix())
	return errors.Wrap(err, "could not record capture")
}

func (x *index) sealDay(date string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.Exec(`INSERT INTO timelapse_days (date, sealed) VALUES (?, 1)
		ON CONFLICT (date) DO UPDATE SET sealed = 1`, date)
	return errors.Wrap(err, "could not seal day")
}

func (x *index) dates() ([]DaySummary, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.db.Query(`SELECT d.date, COUNT(t.id), d.sealed
		FROM timelapse_days d LEFT JOIN timelapse t ON t.date = d.date
		GROUP BY d.date ORDER BY d.date DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list days")
	}
	defer rows.Close()
	var out []DaySummary
	for rows.Next() {
		var d DaySummary
		if err := rows.Scan(&d.Date, &d.Frames, &d.Sealed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (x *index) timelapseFrames(date string) ([]Capture, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.db.Query(`SELECT seq, path, taken FROM timelapse
		WHERE date = ? ORDER BY seq`, date)
	if err != nil {
		return nil, errors.Wrap(err, "could not list frames")
	}
	defer rows.Close()
	var out []Capture
	for rows.Next() {
		var c Capture
		var taken int64
		if err := rows.Scan(&c.Seq, &c.Path, &taken); err != nil {
			return nil, err
		}
		c.Taken = time.Unix(taken, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (x *index) insertEvent(ev Event) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	res, err := x.db.Exec(`INSERT INTO motion_events (taken, area, frames, dir) VALUES (?, ?, ?, ?)`,
		ev.Time.Unix(), ev.Area, ev.FrameCount, ev.Dir)
	if err != nil {
		return 0, errors.Wrap(err, "could not record event")
	}
	return res.LastInsertId()
}

func (x *index) event(id int64) (Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var ev Event
	var taken int64
	err := x.db.QueryRow(`SELECT id, taken, area, frames, dir FROM motion_events WHERE id = ?`, id).
		Scan(&ev.ID, &taken, &ev.Area, &ev.FrameCount, &ev.Dir)
	if err != nil {
		return Event{}, errors.Wrapf(err, "no event %d", id)
	}
	ev.Time = time.Unix(taken, 0)
	return ev, nil
}

func (x *index) events(limit int) ([]Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.db.Query(`SELECT id, taken, area, frames, dir FROM motion_events
		ORDER BY taken DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not list events")
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (x *index) eventsBefore(cutoff time.Time) ([]Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.db.Query(`SELECT id, taken, area, frames, dir FROM motion_events
		WHERE taken < ?`, cutoff.Unix())
	if err != nil {
		return nil, errors.Wrap(err, "could not list old events")
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var taken int64
		if err := rows.Scan(&ev.ID, &taken, &ev.Area, &ev.FrameCount, &ev.Dir); err != nil {
			return nil, err
		}
		ev.Time = time.Unix(taken, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (x *index) deleteEvent(id int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.Exec(`DELETE FROM motion_events WHERE id = ?`, id)
	return errors.Wrap(err, "could not delete event")
}

func (x *index) datesBefore(cutoff time.Time) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rows, err := x.db.Query(`SELECT date FROM timelapse_days WHERE date < ?`,
		cutoff.Format("2006-01-02"))
	if err != nil {
		return nil, errors.Wrap(err, "could not list old days")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (x *index) deleteDay(date string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, err := x.db.Exec(`DELETE FROM timelapse WHERE date = ?`, date); err != nil {
		return errors.Wrap(err, "could not delete day captures")
	}
	_, err := x.db.Exec(`DELETE FROM timelapse_days WHERE date = ?`, date)
	return errors.Wrap(err, "could not delete day")
}

func (x *index) upsertComposite(body string, count int, since time.Time) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.Exec(`INSERT INTO composites (body, count, since) VALUES (?, ?, ?)
		ON CONFLICT (body) DO UPDATE SET count = ?, since = ?`,
		body, count, since.Unix(), count, since.Unix())
	return errors.Wrap(err, "could not record composite")
}

func (x *index) composite(body string) (int, time.Time, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var count int
	var since int64
	err := x.db.QueryRow(`SELECT count, since FROM composites WHERE body = ?`, body).
		Scan(&count, &since)
	if err != nil {
		return 0, time.Time{}, errors.Wrap(err, "no composite record")
	}
	return count, time.Unix(since, 0), nil
}

func (x *index) deleteComposite(body string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, err := x.db.Exec(`DELETE FROM composites WHERE body = ?`, body)
	return errors.Wrap(err, "could not delete composite")
}
