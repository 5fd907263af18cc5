/*
DESCRIPTION
  celestial_test.go provides testing for the celestial tracking service.

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skywatchcam/skywatch/detect"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/watch/config"
)

// scriptedFinder reports a fixed circle on every frame.
type scriptedFinder struct {
	circle detect.Circle
	found  bool
	calls  int
}

func (d *scriptedFinder) Find(_ frame.Frame) (detect.Circle, bool) {
	d.calls++
	return d.circle, d.found
}

func (d *scriptedFinder) Close() error { return nil }

func TestCelestialOracleDeniedTickDoesNothing(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	finder := &scriptedFinder{circle: detect.Circle{X: 4, Y: 3, R: 2}, found: true}
	denied := func(time.Time) bool { return false }
	s := NewCelestial(c, config.BodySun, sub, st, finder, denied)

	publish(200)
	s.tick(time.Now())

	if finder.calls != 0 {
		t.Error("denied tick ran a scan")
	}
	if got := s.Stats(); got.Ticks != 0 || got.Captures != 0 || got.Misses != 0 {
		t.Errorf("denied tick advanced counters: %+v", got)
	}
	if _, _, _, ok := s.Composite().Snapshot(); ok {
		t.Error("denied tick touched the composite")
	}
	// The frame stays available for a later permitted tick.
	if _, ok := sub.TryNext(); !ok {
		t.Error("denied tick consumed the frame")
	}
}

func TestCelestialDetectionBlends(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	finder := &scriptedFinder{circle: detect.Circle{X: 4, Y: 3, R: 2, Brightness: 230}, found: true}
	s := NewCelestial(c, config.BodySun, sub, st, finder, nil)

	publish(100)
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	s.tick(now)

	stats := s.Stats()
	if stats.Ticks != 1 || stats.Captures != 1 {
		t.Errorf("stats after detection: %+v", stats)
	}

	canvas, count, since, ok := s.Composite().Snapshot()
	if !ok {
		t.Fatal("no composite after detection")
	}
	if canvas.Data[0] != 30 { // 100 darkened by the sun seed weight.
		t.Errorf("seed pixel = %d, want 30", canvas.Data[0])
	}
	if got := canvas.Data[pixel(canvas, 4, 3)]; got != 100 {
		t.Errorf("disc pixel = %d, want 100", got)
	}
	if count != 1 || !since.Equal(now) {
		t.Errorf("count %d since %v", count, since)
	}

	// Each detection is archived as a raw capture.
	raws, err := os.ReadDir(filepath.Join(c.StoragePath, "solargraph", "raw"))
	if err != nil || len(raws) != 1 {
		t.Errorf("raw captures = %v (err %v), want 1 archived detection", raws, err)
	}

	// The composite is persisted on each detection and survives
	// reconstruction of the tracker.
	s2 := NewCelestial(c, config.BodySun, sub, st, finder, nil)
	restored, count2, _, ok := s2.Composite().Snapshot()
	if !ok {
		t.Fatal("persisted composite did not restore")
	}
	if diff := cmp.Diff(canvas.Data, restored.Data); diff != "" {
		t.Errorf("restored canvas differs (-want +got):\n%s", diff)
	}
	if count2 != 1 {
		t.Errorf("restored count = %d, want 1", count2)
	}
}

func TestCelestialAccumulatesDiscOnly(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	finder := &scriptedFinder{circle: detect.Circle{X: 4, Y: 3, R: 1}, found: true}
	s := NewCelestial(c, config.BodySun, sub, st, finder, nil)

	publish(100)
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	s.tick(now)

	// A later, uniformly brighter frame raises the canvas only where the
	// body was detected; the background keeps its seed value.
	publish(250)
	s.tick(now.Add(time.Minute))

	canvas, count, _, ok := s.Composite().Snapshot()
	if !ok {
		t.Fatal("no composite after detections")
	}
	if canvas.Data[0] != 30 {
		t.Errorf("pixel (0,0) outside the detected circle = %d, want 30", canvas.Data[0])
	}
	if got := canvas.Data[pixel(canvas, 4, 3)]; got != 250 {
		t.Errorf("disc centre = %d, want 250", got)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestCelestialNoCircleNoBlend(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	finder := &scriptedFinder{found: false}
	s := NewCelestial(c, config.BodySun, sub, st, finder, nil)

	publish(100)
	s.tick(time.Now())

	stats := s.Stats()
	if stats.Ticks != 1 || stats.Captures != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if _, _, _, ok := s.Composite().Snapshot(); ok {
		t.Error("composite accumulated without a detection")
	}
}

func TestCelestialMissWithoutFrame(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, _ := latestSub(t, c)
	finder := &scriptedFinder{found: true}
	s := NewCelestial(c, config.BodySun, sub, st, finder, nil)

	s.tick(time.Now())
	if got := s.Stats(); got.Ticks != 1 || got.Misses != 1 {
		t.Errorf("stats: %+v", got)
	}
	if finder.calls != 0 {
		t.Error("scan ran without a frame")
	}
}

func TestCelestialReset(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sub, publish := latestSub(t, c)
	finder := &scriptedFinder{circle: detect.Circle{X: 4, Y: 3, R: 2}, found: true}
	s := NewCelestial(c, config.BodyMoon, sub, st, finder, nil)

	publish(150)
	s.tick(time.Now())
	if _, _, _, ok := s.Composite().Snapshot(); !ok {
		t.Fatal("no composite to reset")
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, _, _, ok := s.Composite().Snapshot(); ok {
		t.Error("composite survived reset")
	}
	// Nothing restores after a reset.
	s2 := NewCelestial(c, config.BodyMoon, sub, st, finder, nil)
	if _, _, _, ok := s2.Composite().Snapshot(); ok {
		t.Error("reset composite restored from disk")
	}
}

func TestCelestialIndependentBodies(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	sunSub, publishSun := latestSub(t, c)
	moonSub, _ := latestSub(t, c)
	sun := NewCelestial(c, config.BodySun, sunSub, st, &scriptedFinder{found: true}, nil)
	moon := NewCelestial(c, config.BodyMoon, moonSub, st, &scriptedFinder{found: true}, nil)

	publishSun(100)
	sun.tick(time.Now())

	if _, _, _, ok := sun.Composite().Snapshot(); !ok {
		t.Error("sun composite missing")
	}
	if _, _, _, ok := moon.Composite().Snapshot(); ok {
		t.Error("sun detection leaked into the moon composite")
	}
}
