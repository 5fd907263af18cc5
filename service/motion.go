/*
DESCRIPTION
  motion.go provides the motion detection service. Consecutive frames are
  differenced; a sufficiently large changed region triggers a burst
  capture, followed by a cooldown during which further triggers are
  suppressed and counted.

AUTHORS
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

// Motion capture states. Exactly one burst is in flight at a time; a
// trigger during cooldown is suppressed, never queued.
const (
	armed = iota
	triggered
	cooling
)

// Notifier is called with each finalized motion event. Implementations
// must not block; delivery runs on the capture path.
type Notifier func(store.Event)

// Motion watches the frame stream for movement and persists burst
// captures of triggering activity.
type Motion struct {
	sub *frame.Sub
	st  *store.Store
	det detect.MotionDetector
	log logging.Logger

	burstCount int
	burstGap   time.Duration // Minimum spacing of burst frames.
	cooldown   time.Duration
	notify     Notifier

	// Capture state, owned by the run goroutine.
	state        int
	trigger      frame.Frame
	triggerArea  int
	triggerTime  time.Time
	burst        []frame.Frame
	lastBurst    time.Time
	cooldownTill time.Time

	ticks      atomic.Uint64
	events     atomic.Uint64
	failures   atomic.Uint64
	suppressed atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewMotion returns a Motion service reading frames from sub, detecting
// with det and persisting finalized events through st. notify may be nil.
func NewMotion(c config.Config, sub *frame.Sub, st *store.Store, det detect.MotionDetector, notify Notifier) *Motion {
	return &Motion{
		sub:        sub,
		st:         st,
		det:        det,
		log:        c.Logger,
		burstCount: int(c.MotionBurstCount),
		burstGap:   time.Second / time.Duration(c.MotionBurstFPS),
		cooldown:   time.Duration(c.MotionCooldown) * time.Second,
		notify:     notify,
	}
}

// Name implements Service.
func (s *Motion) Name() string { return "motion" }

// Start implements Service.
func (s *Motion) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run()
	s.log.Info("motion detection started", "burstCount", s.burstCount, "cooldown", s.cooldown.String())
	return nil
}

// Stop implements Service. A burst in flight is discarded; an event is
// only ever persisted complete.
func (s *Motion) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
	s.det.Close()
	s.log.Info("motion detection stopped")
}

// Running implements Service.
func (s *Motion) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats implements Service. Motion is frame-driven rather than ticked,
// so no interval is reported.
func (s *Motion) Stats() Stats {
	return Stats{
		Ticks:      s.ticks.Load(),
		Captures:   s.events.Load(),
		Failures:   s.failures.Load(),
		Suppressed: s.suppressed.Load(),
	}
}

func (s *Motion) run() {
	defer s.wg.Done()
	for {
		f, ok := s.sub.Next()
		if !ok {
			return
		}
		select {
		case <-s.stop:
			return
		default:
		}
		s.process(f, time.Now())
	}
}

// process advances the capture state machine by one frame. The detector
// sees every frame outside a burst so its reference stays current.
func (s *Motion) process(f frame.Frame, now time.Time) {
	s.ticks.Add(1)

	switch s.state {
	case triggered:
		// Collect the burst at the configured rate.
		if now.Sub(s.lastBurst) < s.burstGap {
			return
		}
		s.burst = append(s.burst, f)
		s.lastBurst = now
		if len(s.burst) < s.burstCount {
			return
		}
		s.finalize()

	case cooling:
		area, trig := s.det.Detect(f)
		if now.Before(s.cooldownTill) {
			if trig {
				s.suppressed.Add(1)
				s.log.Debug("trigger suppressed during cooldown", "area", area)
			}
			return
		}
		s.state = armed
		if trig {
			s.arm(f, area, now)
		}

	default: // armed
		area, trig := s.det.Detect(f)
		if trig {
			s.arm(f, area, now)
		}
	}
}

func (s *Motion) arm(f frame.Frame, area int, now time.Time) {
	s.state = triggered
	s.trigger = f
	s.triggerArea = area
	s.triggerTime = now
	s.burst = s.burst[:0]
	s.lastBurst = time.Time{}
	s.log.Info("motion triggered", "area", area)
}

// finalize persists the completed burst as an immutable event and enters
// cooldown. A persistence failure discards the burst and re-arms; no
// truncated event is ever written.
func (s *Motion) finalize() {
	ev, err := s.st.SaveEvent(s.triggerTime, s.triggerArea, s.trigger, s.burst)
	s.burst = s.burst[:0]
	if err != nil {
		s.failures.Add(1)
		s.state = armed
		s.log.Error("could not persist motion event", "error", err.Error())
		return
	}
	s.events.Add(1)
	s.state = cooling
	s.cooldownTill = s.lastBurst.Add(s.cooldown)
	s.log.Info("motion event persisted", "id", ev.ID, "frames", ev.FrameCount)
	if s.notify != nil {
		s.notify(ev)
	}
}
