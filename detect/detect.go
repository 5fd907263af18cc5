/*
DESCRIPTION
  detect.go provides the interfaces and shared types for the frame analysis
  algorithms: motion detection by frame differencing, and bright-circle
  detection for sun and moon tracking. Implementations backed by OpenCV are
  selected by building with the withcv tag; pure Go implementations are used
  otherwise and are the ones exercised by the test suite.

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

// Package detect provides motion and bright-circle detection over frames.
package detect

import (
	"github.com/skywatchcam/skywatch/frame"
)

// MotionDetector is the interface for motion detection algorithms. Detect
// compares the given frame against the detector's rolling reference and
// returns the area, in full-resolution pixels, of the largest contiguous
// changed region, and whether that area meets the detector's minimum.
type MotionDetector interface {
	Detect(f frame.Frame) (area int, triggered bool)
	Close() error
}

// Circle is a detected near-circular bright region.
type Circle struct {
	X, Y       int     // Centre in frame coordinates.
	R          int     // Radius in pixels.
	Brightness float64 // Mean brightness of the region, 0-255.
}

// CircleFinder is the interface for bright-circle detection algorithms.
// Find scans a frame for the brightest qualifying near-circular region and
// reports whether one was found. When several candidates qualify only the
// single best-scoring region is returned.
type CircleFinder interface {
	Find(f frame.Frame) (Circle, bool)
	Close() error
}

// MotionParams are the tunables of a motion detector.
type MotionParams struct {
	// Sensitivity, 0-100, sets the per-pixel difference threshold directly:
	// lower values mean a lower threshold and a more sensitive detector.
	Sensitivity uint

	// MinArea is the minimum size in absolute full-resolution pixels of the
	// largest changed region for a trigger.
	MinArea uint

	// Downscaling divides frame dimensions before differencing to bound the
	// per-tick cost. Region areas are reported scaled back to full
	// resolution.
	Downscaling uint
}

// CircleParams are the tunables of a circle finder.
type CircleParams struct {
	Brightness uint // Minimum mean brightness of the region, 0-255.
	MinRadius  uint // Pixels, inclusive.
	MaxRadius  uint // Pixels, inclusive.
}
