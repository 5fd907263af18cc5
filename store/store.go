/*
DESCRIPTION
  store.go provides the on-disk artifact store for SkyWatch captures.
  Frames are written as JPEG files under a per-service directory layout,
  and an SQLite index over the artifacts backs the listing queries.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package store persists captured artifacts. The disk layout is
//
//	<base>/timelapse/<date>/frames/NNNNNN.jpg
//	<base>/motion/<stamp>/trigger.jpg, burst_NNN.jpg
//	<base>/solargraph/{raw,composite.jpg}
//	<base>/lunar/{raw,composite.jpg}
//	<base>/skywatch.db
package store

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Directory names for each artifact family under the base path.
const (
	dirTimelapse = "timelapse"
	dirMotion    = "motion"
	dirSun       = "solargraph"
	dirMoon      = "lunar"
)

// Store writes capture artifacts to disk and maintains the SQLite index
// over them. Methods are safe for concurrent use by the services and the
// API handlers.
type Store struct {
	base    string
	quality int
	db      *index
	log     logging.Logger
}

// New returns a Store rooted at the config's storage path, creating the
// directory layout and opening the index.
func New(c config.Config) (*Store, error) {
	s := &Store{base: c.StoragePath, quality: c.JPEGQuality, log: c.Logger}
	for _, d := range []string{dirTimelapse, dirMotion, dirSun, dirMoon} {
		if err := os.MkdirAll(filepath.Join(s.base, d), 0o755); err != nil {
			return nil, errors.Wrap(err, "could not create storage layout")
		}
	}
	db, err := openIndex(filepath.Join(s.base, "skywatch.db"))
	if err != nil {
		return nil, errors.Wrap(err, "could not open index")
	}
	s.db = db
	return s, nil
}

// Close releases the index.
func (s *Store) Close() error { return s.db.close() }

// EncodeJPEG encodes a frame at the given quality.
func EncodeJPEG(f frame.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: quality})
	if err != nil {
		return nil, errors.Wrap(err, "could not encode frame")
	}
	return buf.Bytes(), nil
}

func (s *Store) writeJPEG(path string, f frame.Frame) error {
	b, err := EncodeJPEG(f, s.quality)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "could not write "+path)
}

// AppendTimelapse writes a frame into the day bucket for the given local
// calendar date and records it in the index. The sequence number within
// the day orders the frames.
func (s *Store) AppendTimelapse(date string, f frame.Frame, taken time.Time) error {
	sealed, err := s.db.daySealed(date)
	if err != nil {
		return err
	}
	if sealed {
		return errors.Errorf("day bucket %s is sealed", date)
	}

	dir := filepath.Join(s.base, dirTimelapse, date, "frames")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "could not create day bucket")
	}
	seq, err := s.db.nextTimelapseSeq(date)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%06d.jpg", seq))
	if err := s.writeJPEG(path, f); err != nil {
		return err
	}
	return s.db.insertTimelapse(date, seq, path, taken)
}

// SealDay marks a day bucket complete. A sealed bucket rejects further
// appends.
func (s *Store) SealDay(date string) error { return s.db.sealDay(date) }

// Dates returns summaries of all timelapse day buckets, newest first.
func (s *Store) Dates() ([]DaySummary, error) { return s.db.dates() }

// TimelapseFrames returns the captures of one day bucket in sequence
// order.
func (s *Store) TimelapseFrames(date string) ([]Capture, error) { return s.db.timelapseFrames(date) }

// SaveEvent persists a finalized motion burst. The trigger frame and the
// burst frames are written under a timestamped event directory, and the
// event is recorded in the index. The returned Event carries the assigned
// ID.
func (s *Store) SaveEvent(taken time.Time, area int, trigger frame.Frame, burst []frame.Frame) (Event, error) {
	stamp := taken.Format("20060102_150405")
	dir := filepath.Join(s.base, dirMotion, stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Event{}, errors.Wrap(err, "could not create event directory")
	}
	if err := s.writeJPEG(filepath.Join(dir, "trigger.jpg"), trigger); err != nil {
		return Event{}, err
	}
	for i, f := range burst {
		if err := s.writeJPEG(filepath.Join(dir, fmt.Sprintf("burst_%03d.jpg", i)), f); err != nil {
			return Event{}, err
		}
	}
	ev := Event{Time: taken, Area: area, FrameCount: len(burst), Dir: dir}
	id, err := s.db.insertEvent(ev)
	if err != nil {
		return Event{}, err
	}
	ev.ID = id
	return ev, nil
}

// Events returns up to limit finalized motion events, newest first.
func (s *Store) Events(limit int) ([]Event, error) { return s.db.events(limit) }

// EventFrames returns the burst frame paths of one event in capture
// order, preceded by the trigger frame.
func (s *Store) EventFrames(id int64) ([]string, error) {
	ev, err := s.db.event(id)
	if err != nil {
		return nil, err
	}
	paths := []string{filepath.Join(ev.Dir, "trigger.jpg")}
	for i := 0; i < ev.FrameCount; i++ {
		paths = append(paths, filepath.Join(ev.Dir, fmt.Sprintf("burst_%03d.jpg", i)))
	}
	return paths, nil
}

// SaveDetection archives one detection frame for the given body under
// its raw capture directory, named by capture time.
func (s *Store) SaveDetection(body string, f frame.Frame, taken time.Time) error {
	dir := filepath.Join(s.bodyDir(body), "raw")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "could not create raw capture dir")
	}
	return s.writeJPEG(filepath.Join(dir, taken.Format("20060102_150405")+".jpg"), f)
}

// SaveComposite persists a composite canvas for the given body, both as
// the accumulation buffer for reload and as a rendered JPEG.
func (s *Store) SaveComposite(body string, canvas frame.Frame, count int, since time.Time) error {
	dir := s.bodyDir(body)
	if err := os.WriteFile(filepath.Join(dir, "canvas"), canvas.Data, 0o644); err != nil {
		return errors.Wrap(err, "could not write composite canvas")
	}
	if err := s.writeJPEG(filepath.Join(dir, "composite.jpg"), canvas); err != nil {
		return err
	}
	return s.db.upsertComposite(body, count, since)
}

// LoadComposite restores a previously saved composite canvas for the
// given body and frame geometry. ok is false when no saved canvas exists
// or its geometry no longer matches.
func (s *Store) LoadComposite(body string, width, height int) (canvas frame.Frame, count int, since time.Time, ok bool) {
	data, err := os.ReadFile(filepath.Join(s.bodyDir(body), "canvas"))
	if err != nil {
		return frame.Frame{}, 0, time.Time{}, false
	}
	f := frame.Frame{Data: data, Width: width, Height: height}
	if !f.Valid() {
		return frame.Frame{}, 0, time.Time{}, false
	}
	count, since, err = s.db.composite(body)
	if err != nil {
		return frame.Frame{}, 0, time.Time{}, false
	}
	return f, count, since, true
}

// CompositeJPEG returns the rendered composite of the given body, or an
// error if none has been saved yet.
func (s *Store) CompositeJPEG(body string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.bodyDir(body), "composite.jpg"))
	return b, errors.Wrap(err, "no composite for "+body)
}

// ResetComposite removes the saved canvas and index row of the given
// body. The raw detection archive stays; only the accumulation resets.
func (s *Store) ResetComposite(body string) error {
	dir := s.bodyDir(body)
	os.Remove(filepath.Join(dir, "canvas"))
	os.Remove(filepath.Join(dir, "composite.jpg"))
	return s.db.deleteComposite(body)
}

// Prune removes artifacts older than the retention window and their index
// rows. Composites are exempt; they accumulate until an explicit reset.
func (s *Store) Prune(retentionDays uint) error {
	cutoff := time.Now().AddDate(0, 0, -int(retentionDays))

	dates, err := s.db.datesBefore(cutoff)
	if err != nil {
		return err
	}
	for _, d := range dates {
		if err := os.RemoveAll(filepath.Join(s.base, dirTimelapse, d)); err != nil {
			return errors.Wrap(err, "could not remove day bucket")
		}
		if err := s.db.deleteDay(d); err != nil {
			return err
		}
		s.log.Info("pruned timelapse day", "date", d)
	}

	evs, err := s.db.eventsBefore(cutoff)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if err := os.RemoveAll(ev.Dir); err != nil {
			return errors.Wrap(err, "could not remove event directory")
		}
		if err := s.db.deleteEvent(ev.ID); err != nil {
			return err
		}
		s.log.Info("pruned motion event", "id", ev.ID)
	}
	return nil
}

func (s *Store) bodyDir(body string) string {
	if body == config.BodyMoon {
		return filepath.Join(s.base, dirMoon)
	}
	return filepath.Join(s.base, dirSun)
}
