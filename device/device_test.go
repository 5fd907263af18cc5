/*
DESCRIPTION
  device_test.go tests the ManualSource test device.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package device

import (
	"bytes"
	"testing"
)

func TestManualSourceReadsQueuedFrames(t *testing.T) {
	m := NewManualSource(4)
	if err := m.Start(); err != nil {
		t.Fatalf("could not start source: %v", err)
	}
	want := [][]byte{{1, 2, 3}, {4, 5, 6}}
	for _, b := range want {
		m.Queue(b)
	}
	for i, w := range want {
		got, err := m.ReadFrame()
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if !bytes.Equal(got, w) {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}
}

func TestManualSourceStopUnblocksRead(t *testing.T) {
	m := NewManualSource(1)
	if err := m.Start(); err != nil {
		t.Fatalf("could not start source: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.ReadFrame()
		done <- err
	}()

	m.Stop()
	if err := <-done; err != ErrStopped {
		t.Errorf("got %v, want ErrStopped", err)
	}
	if m.IsRunning() {
		t.Error("source still running after Stop")
	}
}
