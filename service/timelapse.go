/*
DESCRIPTION
  timelapse.go provides the timelapse capture service. At a fixed interval
  the latest available frame is appended to a day bucket keyed by the
  local calendar date; the previous bucket is sealed when the date rolls
  over.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch/config"
)

const dayFormat = "2006-01-02"

// Timelapse captures one frame per interval into per-day buckets.
type Timelapse struct {
	sub      *frame.Sub
	st       *store.Store
	log      logging.Logger
	interval time.Duration

	day string // Date of the open bucket, empty before the first capture.

	ticks    atomic.Uint64
	captures atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewTimelapse returns a Timelapse service reading frames from sub and
// persisting captures through st.
func NewTimelapse(c config.Config, sub *frame.Sub, st *store.Store) *Timelapse {
	return &Timelapse{
		sub:      sub,
		st:       st,
		log:      c.Logger,
		interval: time.Duration(c.TimelapseInterval) * time.Second,
	}
}

// Name implements Service.
func (s *Timelapse) Name() string { return "timelapse" }

// Start implements Service, launching the capture loop.
func (s *Timelapse) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run()
	s.log.Info("timelapse started", "interval", s.interval.String())
	return nil
}

// Stop implements Service.
func (s *Timelapse) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("timelapse stopped")
}

// Running implements Service.
func (s *Timelapse) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats implements Service.
func (s *Timelapse) Stats() Stats {
	return Stats{
		Interval: s.interval.Seconds(),
		Ticks:    s.ticks.Load(),
		Captures: s.captures.Load(),
		Misses:   s.misses.Load(),
		Failures: s.failures.Load(),
	}
}

func (s *Timelapse) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case t := <-ticker.C:
			s.tick(t)
		}
	}
}

// tick performs one capture cycle at the given time. Failures are counted
// and logged, never propagated.
func (s *Timelapse) tick(now time.Time) {
	s.ticks.Add(1)

	date := now.Format(dayFormat)
	if s.day != "" && date != s.day {
		if err := s.st.SealDay(s.day); err != nil {
			s.failures.Add(1)
			s.log.Error("could not seal day bucket", "date", s.day, "error", err.Error())
		} else {
			s.log.Info("sealed day bucket", "date", s.day)
		}
	}
	s.day = date

	f, ok := s.sub.TryNext()
	if !ok {
		s.misses.Add(1)
		s.log.Debug("no frame available for timelapse tick")
		return
	}

	if err := s.st.AppendTimelapse(date, f, now); err != nil {
		s.failures.Add(1)
		s.log.Error("could not append timelapse capture", "date", date, "error", err.Error())
		return
	}
	s.captures.Add(1)
}
