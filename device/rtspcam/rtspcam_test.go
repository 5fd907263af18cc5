/*
DESCRIPTION
  rtspcam_test.go tests configuration of the RTSP camera device.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package rtspcam

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/skywatchcam/skywatch/device"
	"github.com/skywatchcam/skywatch/watch/config"
)

func TestSet(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.

	tests := []struct {
		name string
		cfg  config.Config
		want error
	}{
		{
			name: "ok",
			cfg:  config.Config{CameraURL: "rtsp://cam.local/stream", Width: 1280, Height: 720, Logger: l},
		},
		{
			name: "missing url",
			cfg:  config.Config{Width: 1280, Height: 720, Logger: l},
			want: errBadURL,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := New(l)
			err := d.Set(test.cfg)
			if test.want == nil {
				if err != nil {
					t.Fatalf("could not set device: %v", err)
				}
				return
			}
			var me device.MultiError
			if !errors.As(err, &me) {
				t.Fatalf("got %v, want MultiError", err)
			}
			found := false
			for _, e := range me {
				if errors.Is(e, test.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("got %v, want %v", err, test.want)
			}
		})
	}
}

func TestSetDefaultsGeometry(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	d := New(l)
	// Unset geometry is noted in the MultiError and defaulted.
	err := d.Set(config.Config{CameraURL: "rtsp://cam.local/stream", Logger: l})
	var me device.MultiError
	if !errors.As(err, &me) {
		t.Fatalf("got %v, want MultiError noting defaulted fields", err)
	}
	if d.frameSize != 1920*1080*3 {
		t.Errorf("frameSize = %d, want default 1080p geometry", d.frameSize)
	}
}

func TestReadFrameNotRunning(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	d := New(l)
	if _, err := d.ReadFrame(); err != device.ErrStopped {
		t.Errorf("got %v, want ErrStopped", err)
	}
}
