/*
DESCRIPTION
  timelapse_test.go provides testing for the timelapse capture service.

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
	"testing"
	"time"
)

func TestTimelapseCaptureCadence(t *testing.T) {
	// At a 60 second interval over 130 seconds of 1 fps frames, exactly
	// two captures land: at t=60 and t=120.
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	s := NewTimelapse(c, sub, st)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	next := base.Add(time.Duration(c.TimelapseInterval) * time.Second)
	for i := 0; i <= 130; i++ {
		now := base.Add(time.Duration(i) * time.Second)
		publish(byte(i))
		if !now.Before(next) {
			s.tick(now)
			next = next.Add(time.Duration(c.TimelapseInterval) * time.Second)
		}
	}

	stats := s.Stats()
	if stats.Captures != 2 {
		t.Errorf("got %d captures over 130s at 60s interval, want 2", stats.Captures)
	}
	if stats.Interval != 60 {
		t.Errorf("reported interval = %v, want 60", stats.Interval)
	}
	frames, err := st.TimelapseFrames(base.Format(dayFormat))
	if err != nil {
		t.Fatalf("could not list frames: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("store holds %d frames, want 2", len(frames))
	}
}

func TestTimelapseMissWithoutFrames(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, _ := latestSub(t, c)
	s := NewTimelapse(c, sub, st)

	s.tick(time.Now())
	stats := s.Stats()
	if stats.Misses != 1 || stats.Captures != 0 {
		t.Errorf("got misses %d captures %d, want 1 0", stats.Misses, stats.Captures)
	}
}

func TestTimelapseDayRollover(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	s := NewTimelapse(c, sub, st)

	day1 := time.Date(2026, 8, 30, 23, 59, 30, 0, time.Local)
	publish(1)
	s.tick(day1)
	day2 := day1.Add(time.Minute)
	publish(2)
	s.tick(day2)

	days, err := st.Dates()
	if err != nil {
		t.Fatalf("could not list days: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("got %d day buckets, want 2", len(days))
	}
	// Newest first; the rolled-over day must be sealed.
	if days[0].Date != day2.Format(dayFormat) || days[0].Sealed {
		t.Errorf("open day: %+v", days[0])
	}
	if days[1].Date != day1.Format(dayFormat) || !days[1].Sealed {
		t.Errorf("sealed day: %+v", days[1])
	}

	// The sealed bucket rejects further appends.
	publish(3)
	s.day = "" // Force re-evaluation without a rollover.
	s.tick(day1)
	if s.Stats().Failures != 1 {
		t.Error("append to sealed day was not counted as a failure")
	}
}
