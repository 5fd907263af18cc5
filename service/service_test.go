/*
DESCRIPTION
  service_test.go provides shared helpers for the service tests.

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
	"bytes"
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch/config"
)

// testConfig returns a validated config rooted in a temporary storage
// directory with all services enabled.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	c := config.Config{
		CameraURL:         "rtsp://test.invalid/stream",
		Width:             8,
		Height:            6,
		StoragePath:       t.TempDir(),
		TimelapseInterval: 60,
		MotionBurstCount:  3,
		MotionBurstFPS:    10,
		MotionCooldown:    5,
		Logger:            logging.New(logging.Debug, &bytes.Buffer{}, true),
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("could not validate test config: %v", err)
	}
	return c
}

func testStore(t *testing.T, c config.Config) *store.Store {
	t.Helper()
	st, err := store.New(c)
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// latestSub returns a latest-wins subscription on a fresh bus along with
// a publish function feeding it sequenced frames of the config geometry.
func latestSub(t *testing.T, c config.Config) (*frame.Sub, func(v byte)) {
	t.Helper()
	bus := frame.NewBus()
	sub, err := bus.Subscribe("test", frame.LatestWins, 0)
	if err != nil {
		t.Fatalf("could not subscribe: %v", err)
	}
	var seq uint64
	return sub, func(v byte) {
		f := flatFrame(int(c.Width), int(c.Height), v)
		f.Seq = seq
		seq++
		bus.Publish(f)
	}
}
