/*
DESCRIPTION
  config_test.go tests config validation, defaulting, update parsing and
  settings file round-tripping.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func TestValidateDefaults(t *testing.T) {
	c := Config{CameraURL: "rtsp://cam/stream", Logger: testLogger()}
	err := c.Validate()
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if c.Width != defaultWidth || c.Height != defaultHeight {
		t.Errorf("frame dims not defaulted: got %dx%d", c.Width, c.Height)
	}
	if c.TimelapseInterval != defaultTimelapseInt {
		t.Errorf("timelapse interval not defaulted: got %d", c.TimelapseInterval)
	}
	if c.MotionSensitivity != defaultSensitivity {
		t.Errorf("sensitivity not defaulted: got %d", c.MotionSensitivity)
	}
	if c.MaxFrameQueue != defaultMaxFrameQueue {
		t.Errorf("frame queue not defaulted: got %d", c.MaxFrameQueue)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want error
	}{
		{"no camera url", func(c *Config) { c.CameraURL = "" }, ErrNoCameraURL},
		{"sensitivity range", func(c *Config) { c.MotionSensitivity = 101 }, ErrBadSensitivity},
		{"brightness range", func(c *Config) { c.SolarBrightness = 300 }, ErrBadBrightness},
		{"radius order", func(c *Config) { c.SolarMinRadius = 50; c.SolarMaxRadius = 20 }, ErrBadRadii},
		{"latitude range", func(c *Config) { c.Latitude = 91 }, ErrBadLatitude},
		{"backoff order", func(c *Config) { c.CameraBackoff = 60; c.CameraBackoffMax = 30 }, ErrBadBackoff},
	}
	for _, tt := range tests {
		c := Config{CameraURL: "rtsp://cam/stream", Logger: testLogger()}
		tt.mod(&c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: validate passed, want %v", tt.name, tt.want)
			continue
		}
		if !containsErr(err, tt.want) {
			t.Errorf("%s: got %v, want it to contain %v", tt.name, err, tt.want)
		}
	}
}

// containsErr walks nested MultiErrors looking for target.
func containsErr(err, target error) bool {
	me, ok := err.(MultiError)
	if !ok {
		return errors.Is(err, target)
	}
	for _, e := range me {
		if containsErr(e, target) {
			return true
		}
	}
	return false
}

func TestUpdate(t *testing.T) {
	c := Config{Logger: testLogger()}
	c.Update(map[string]string{
		KeyCameraURL:         "rtsp://example/live",
		KeyMotionSensitivity: "40",
		KeyLatitude:          "-35.5",
		KeySolarEnabled:      "true",
		KeyLunarEnabled:      "0",
		KeyDailyVideo:        "true",
		"Bogus":              "ignored",
	})
	if c.CameraURL != "rtsp://example/live" {
		t.Errorf("CameraURL not updated: got %q", c.CameraURL)
	}
	if c.MotionSensitivity != 40 {
		t.Errorf("MotionSensitivity not updated: got %d", c.MotionSensitivity)
	}
	if c.Latitude != -35.5 {
		t.Errorf("Latitude not updated: got %v", c.Latitude)
	}
	if !c.SolarEnabled || c.LunarEnabled {
		t.Errorf("bool parsing wrong: solar %v lunar %v", c.SolarEnabled, c.LunarEnabled)
	}
	if !c.DailyVideo {
		t.Error("DailyVideo not updated")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	in := Config{
		CameraURL:         "rtsp://cam/stream",
		Width:             1280,
		Height:            720,
		TimelapseEnabled:  true,
		TimelapseInterval: 120,
		MotionEnabled:     true,
		MotionSensitivity: 30,
		Latitude:          -34.9,
		Longitude:         138.6,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("could not save settings: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("could not load settings: %v", err)
	}
	if out.CameraURL != in.CameraURL || out.Width != in.Width || out.TimelapseInterval != in.TimelapseInterval {
		t.Errorf("round trip mismatch: got %+v", out)
	}

	// A second save keeps a backup of the first.
	in.Width = 640
	if err := Save(path, in); err != nil {
		t.Fatalf("could not re-save settings: %v", err)
	}
	if _, err := os.Stat(path + ".backup"); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}
