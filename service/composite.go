/*
DESCRIPTION
  composite.go provides the accumulating composite canvas used by the
  celestial tracking services. The detected disc of each frame is blended
  into the canvas with a per-pixel maximum, producing solargraph and lunar
  trail images over days or months.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package service

import (
	"sync"
	"time"

	"github.com/skywatchcam/skywatch/detect"
	"github.com/skywatchcam/skywatch/frame"
)

// Composite accumulates detections into a canvas. The first blended frame
// seeds the canvas darkened by the seed weight, so the sky background
// stays dim and later maxima stand out as the body's trail. All methods
// are safe for concurrent use.
type Composite struct {
	mu         sync.Mutex
	canvas     frame.Frame
	count      int
	since      time.Time
	seedWeight float64
}

// NewComposite returns a Composite seeding its canvas at the given
// weight, 0 to 1.
func NewComposite(seedWeight float64) *Composite {
	return &Composite{seedWeight: seedWeight}
}

// Restore installs a previously persisted canvas and its counters,
// overwriting any current accumulation.
func (c *Composite) Restore(canvas frame.Frame, count int, since time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas = canvas.Clone()
	c.count = count
	c.since = since
}

// Blend accumulates one detection. An empty canvas is first seeded from
// the whole frame darkened by the seed weight; then only pixels inside
// the detected disc are raised to the per-pixel maximum. Brightness
// elsewhere in the frame, clouds or lights, never accumulates into the
// trail.
func (c *Composite) Blend(f frame.Frame, disc detect.Circle, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.canvas.Data == nil || len(c.canvas.Data) != len(f.Data) {
		c.canvas = frame.Frame{
			Data:   make([]byte, len(f.Data)),
			Width:  f.Width,
			Height: f.Height,
		}
		for i, v := range f.Data {
			c.canvas.Data[i] = byte(float64(v) * c.seedWeight)
		}
		c.count = 0
		c.since = now
	}

	y0, y1 := disc.Y-disc.R, disc.Y+disc.R
	if y0 < 0 {
		y0 = 0
	}
	if y1 >= f.Height {
		y1 = f.Height - 1
	}
	for y := y0; y <= y1; y++ {
		for x := disc.X - disc.R; x <= disc.X+disc.R; x++ {
			if x < 0 || x >= f.Width {
				continue
			}
			dx, dy := x-disc.X, y-disc.Y
			if dx*dx+dy*dy > disc.R*disc.R {
				continue
			}
			i := (y*f.Width + x) * frame.PixelStride
			for ch := 0; ch < frame.PixelStride; ch++ {
				if f.Data[i+ch] > c.canvas.Data[i+ch] {
					c.canvas.Data[i+ch] = f.Data[i+ch]
				}
			}
		}
	}
	c.count++
}

// Snapshot returns a copy of the canvas and the accumulation counters.
// ok is false while the canvas is empty.
func (c *Composite) Snapshot() (canvas frame.Frame, count int, since time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas.Data == nil {
		return frame.Frame{}, 0, time.Time{}, false
	}
	return c.canvas.Clone(), c.count, c.since, true
}

// Reset atomically blanks the canvas, zeroes the detection count and
// clears the accumulation start time. The next detection reseeds.
func (c *Composite) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas = frame.Frame{}
	c.count = 0
	c.since = time.Time{}
}
