/*
DESCRIPTION
  frame.go provides the Frame type, an immutable snapshot of one decoded
  camera frame shared read-only between the capture loop and subscribers.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package frame provides the Frame type and the Bus used to fan decoded
// frames out to any number of independent subscribers.
package frame

import (
	"image"
	"image/color"
	"time"
)

// Bytes per pixel of frame data. Frames are raw BGR24, matching the pixel
// format the capture device is asked to emit.
const PixelStride = 3

// Frame is a single decoded video frame. A Frame must not be modified after
// it has been published; subscribers share the underlying pixel data.
type Frame struct {
	Data   []byte    // Raw BGR24 pixel data, row-major, len = PixelStride*Width*Height.
	Width  int       // Frame width in pixels.
	Height int       // Frame height in pixels.
	Seq    uint64    // Capture sequence number, strictly increasing per source.
	Time   time.Time // Capture timestamp.
}

// Valid reports whether the frame's buffer length agrees with its declared
// dimensions. Frames failing this check are discarded by the capture loop
// and never published.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == PixelStride*f.Width*f.Height
}

// Clone returns a deep copy of the frame. Services that need to hold pixel
// data across ticks, e.g. for burst buffering, clone rather than retaining
// the shared buffer.
func (f Frame) Clone() Frame {
	d := make([]byte, len(f.Data))
	copy(d, f.Data)
	f.Data = d
	return f
}

// Gray returns the frame reduced to 8-bit luma using integer Rec. 601
// weights. The result is a new buffer of Width*Height bytes.
func (f Frame) Gray() []byte {
	g := make([]byte, f.Width*f.Height)
	for i, j := 0, 0; i < len(g); i, j = i+1, j+PixelStride {
		b := uint32(f.Data[j])
		gr := uint32(f.Data[j+1])
		r := uint32(f.Data[j+2])
		g[i] = uint8((299*r + 587*gr + 114*b) / 1000)
	}
	return g
}

// Image converts the frame to an image.RGBA, e.g. for JPEG encoding.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * PixelStride
			img.SetRGBA(x, y, color.RGBA{R: f.Data[i+2], G: f.Data[i+1], B: f.Data[i], A: 0xff})
		}
	}
	return img
}
