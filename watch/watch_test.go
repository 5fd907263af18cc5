/*
DESCRIPTION
  watch_test.go provides testing for the capture session orchestrator.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package watch

import (
	"testing"
	"time"

	"github.com/skywatchcam/skywatch/device"
)

func TestWatchDisabledServicesCostNothing(t *testing.T) {
	c := testConfig(t)
	dev := device.NewManualSource(1)
	w, err := New(c, Options{Device: dev})
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	if len(w.services) != 0 {
		t.Errorf("disabled services constructed: %d", len(w.services))
	}
	if w.Sun() != nil || w.Moon() != nil {
		t.Error("disabled trackers constructed")
	}
	if got := w.Bus().Subscribers(); got != 0 {
		t.Errorf("disabled services subscribed: %d", got)
	}
}

func TestWatchStartStop(t *testing.T) {
	c := testConfig(t)
	c.TimelapseEnabled = true
	c.MotionEnabled = true
	dev := device.NewManualSource(32)
	w, err := New(c, Options{Device: dev})
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("could not start session: %v", err)
	}
	if !w.Running() {
		t.Fatal("session not running after start")
	}

	dev.Queue(validFrame(c, 1))
	dev.Queue(validFrame(c, 2))
	waitFor(t, "frames through the bus", func() bool { return w.Bus().Published() == 2 })

	status := w.Status()
	if status.Camera.State != "connected" {
		t.Errorf("camera state = %s, want connected", status.Camera.State)
	}
	if len(status.Services) != 2 {
		t.Errorf("got %d services in status, want 2", len(status.Services))
	}
	tl, ok := status.Services["timelapse"]
	if !ok {
		t.Error("timelapse missing from status")
	}
	if !tl.Enabled || !tl.Running {
		t.Errorf("timelapse status = %+v, want enabled and running", tl)
	}
	if got := tl.Stats.Interval; got != float64(c.TimelapseInterval) {
		t.Errorf("timelapse interval = %v, want %d", got, c.TimelapseInterval)
	}
	if _, ok := status.Services["motion"]; !ok {
		t.Error("motion missing from status")
	}

	// Stop must complete even with the motion loop blocked on delivery.
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("stop did not complete")
	}
	if w.Running() {
		t.Error("session running after stop")
	}
	if w.Status().Camera.State != "disconnected" {
		t.Errorf("camera state after stop = %s", w.Status().Camera.State)
	}
}

func TestWatchUpdateRestarts(t *testing.T) {
	c := testConfig(t)
	c.TimelapseEnabled = true
	dev := device.NewManualSource(32)
	w, err := New(c, Options{Device: dev})
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("could not start session: %v", err)
	}
	defer w.Stop()

	if err := w.Update(map[string]string{"TimelapseInterval": "120"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !w.Running() {
		t.Error("session not running after update")
	}
	if got := w.Config().TimelapseInterval; got != 120 {
		t.Errorf("TimelapseInterval = %d after update, want 120", got)
	}
}

func TestWatchUpdateRejectsBadConfig(t *testing.T) {
	c := testConfig(t)
	dev := device.NewManualSource(1)
	w, err := New(c, Options{Device: dev})
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("could not start session: %v", err)
	}
	defer w.Stop()

	if err := w.Update(map[string]string{"JPEGQuality": "150"}); err == nil {
		t.Fatal("out of range quality accepted")
	}
	// The previous config stays in effect and the session keeps running.
	if got := w.Config().JPEGQuality; got == 150 {
		t.Error("rejected value installed")
	}
	if !w.Running() {
		t.Error("session not running after rejected update")
	}
}
