/*
DESCRIPTION
  celestial.go provides the celestial tracking service, run once for the
  sun and once for the moon. On each tick a daylight oracle is consulted
  first; when conditions permit, the brightest qualifying circle is found
  and the frame is blended into the body's composite.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>
  Teodora Marek <teo@skywatchcam.io>

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

	"github.com/skywatchcam/skywatch/detect"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Canvas seed weights. The first detection seeds the composite from the
// frame darkened by these factors; the moon's darker so faint night sky
// detail does not wash out the trail.
const (
	SunSeedWeight  = 0.3
	MoonSeedWeight = 0.2
)

// Celestial tracks one celestial body, accumulating detections into a
// composite. The sun and moon trackers are fully independent instances;
// neither suppresses the other.
type Celestial struct {
	body     string
	sub      *frame.Sub
	st       *store.Store
	finder   detect.CircleFinder
	oracle   Oracle
	comp     *Composite
	log      logging.Logger
	interval time.Duration

	ticks      atomic.Uint64
	detections atomic.Uint64
	misses     atomic.Uint64
	failures   atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewCelestial returns a tracker for the given body (config.BodySun or
// config.BodyMoon). A nil oracle always permits detection. A previously
// persisted composite is restored from st so accumulation survives
// restarts.
func NewCelestial(c config.Config, body string, sub *frame.Sub, st *store.Store, finder detect.CircleFinder, oracle Oracle) *Celestial {
	s := &Celestial{
		body:   body,
		sub:    sub,
		st:     st,
		finder: finder,
		oracle: oracle,
		log:    c.Logger,
	}
	switch body {
	case config.BodyMoon:
		s.interval = time.Duration(c.LunarInterval) * time.Second
		s.comp = NewComposite(MoonSeedWeight)
	default:
		s.interval = time.Duration(c.SolarInterval) * time.Second
		s.comp = NewComposite(SunSeedWeight)
	}
	if canvas, count, since, ok := st.LoadComposite(body, int(c.Width), int(c.Height)); ok {
		s.comp.Restore(canvas, count, since)
		s.log.Info("restored composite", "body", body, "detections", count)
	}
	return s
}

// Name implements Service.
func (s *Celestial) Name() string { return s.body }

// Composite returns the tracker's composite for snapshot and reset
// access.
func (s *Celestial) Composite() *Composite { return s.comp }

// Start implements Service.
func (s *Celestial) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run()
	s.log.Info("celestial tracking started", "body", s.body, "interval", s.interval.String())
	return nil
}

// Stop implements Service.
func (s *Celestial) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
	s.finder.Close()
	s.log.Info("celestial tracking stopped", "body", s.body)
}

// Running implements Service.
func (s *Celestial) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats implements Service.
func (s *Celestial) Stats() Stats {
	return Stats{
		Interval: s.interval.Seconds(),
		Ticks:    s.ticks.Load(),
		Captures: s.detections.Load(),
		Misses:   s.misses.Load(),
		Failures: s.failures.Load(),
	}
}

// Reset blanks the composite and removes its persisted form. Accumulation
// restarts at the next detection.
func (s *Celestial) Reset() error {
	s.comp.Reset()
	return s.st.ResetComposite(s.body)
}

func (s *Celestial) run() {
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

// tick performs one detection cycle. A tick denied by the oracle does no
// work at all: no frame read, no scan, no counter.
func (s *Celestial) tick(now time.Time) {
	if s.oracle != nil && !s.oracle(now) {
		return
	}
	s.ticks.Add(1)

	f, ok := s.sub.TryNext()
	if !ok {
		s.misses.Add(1)
		return
	}

	c, found := s.finder.Find(f)
	if !found {
		return
	}
	s.log.Debug("celestial body detected", "body", s.body, "x", c.X, "y", c.Y, "r", c.R)

	if err := s.st.SaveDetection(s.body, f, now); err != nil {
		s.failures.Add(1)
		s.log.Error("could not archive detection", "body", s.body, "error", err.Error())
	}

	s.comp.Blend(f, c, now)
	s.detections.Add(1)

	canvas, count, since, ok := s.comp.Snapshot()
	if !ok {
		return
	}
	if err := s.st.SaveComposite(s.body, canvas, count, since); err != nil {
		s.failures.Add(1)
		s.log.Error("could not persist composite", "body", s.body, "error", err.Error())
	}
}
