//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  detect_release.go provides detector constructors for builds without
  OpenCV, backed by the pure Go implementations.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package detect

// NewMotionDetector returns a frame-differencing motion detector.
func NewMotionDetector(p MotionParams) MotionDetector { return NewDiffer(p) }

// NewCircleFinder returns a bright-circle finder for celestial tracking.
func NewCircleFinder(p CircleParams) CircleFinder { return NewBrightCircle(p) }
