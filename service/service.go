/*
DESCRIPTION
  service.go defines the interface and shared types of the frame-consuming
  capture services.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package service provides the capture services consuming the frame bus:
// timelapse capture, motion-triggered bursts, and celestial composite
// tracking.
package service

import "time"

// Service is a frame-consuming capture service with an independent
// lifecycle. A tick failure inside a service is logged and counted, never
// propagated; the rest of the system keeps running.
type Service interface {
	// Name returns a short identifier used in logs and status output.
	Name() string

	// Start launches the service loop. It returns an error only for
	// startup faults; runtime faults are contained.
	Start() error

	// Stop terminates the service loop and waits for it to finish.
	// In-flight partial work is abandoned, never persisted truncated.
	Stop()

	// Running reports whether the service loop is active.
	Running() bool

	// Stats returns a snapshot of the service counters.
	Stats() Stats
}

// Stats holds the counters of one service. Not every counter is
// meaningful to every service; unused ones stay zero.
type Stats struct {
	Interval   float64 `json:"interval"`   // Seconds between ticks; 0 for frame-driven services.
	Ticks      uint64  `json:"ticks"`      // Work cycles attempted.
	Captures   uint64  `json:"captures"`   // Artifacts produced.
	Misses     uint64  `json:"misses"`     // Ticks with no frame available.
	Failures   uint64  `json:"failures"`   // Contained tick errors.
	Suppressed uint64  `json:"suppressed"` // Motion triggers ignored during cooldown.
}

// Oracle reports whether external conditions permit detection at the
// given time, such as a daylight check for sun tracking. The tracking
// services treat a nil Oracle as always permitting.
type Oracle func(time.Time) bool
