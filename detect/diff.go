/*
DESCRIPTION
  diff.go provides a pure Go motion detection algorithm using a difference
  method on consecutive grayscale frames. Pixels whose difference exceeds a
  sensitivity-derived threshold are marked changed, the changed mask is
  dilated to fill small holes, and the largest 4-connected changed region
  is measured against the configured minimum area.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package detect

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/skywatchcam/skywatch/frame"
)

// Differ is a motion detection algorithm comparing each frame against the
// previous one. The first frame seeds the reference and never triggers.
type Differ struct {
	thresh  uint8
	minArea int
	scale   int
	prev    *image.Gray
}

// NewDiffer returns a pointer to a new Differ using the given parameters.
func NewDiffer(p MotionParams) *Differ {
	scale := int(p.Downscaling)
	if scale < 1 {
		scale = 1
	}
	return &Differ{
		thresh:  uint8(p.Sensitivity),
		minArea: int(p.MinArea),
		scale:   scale,
	}
}

// Close satisfies MotionDetector; the pure Go differ holds no external
// resources.
func (d *Differ) Close() error { return nil }

// Detect performs motion detection on a frame. It returns the area of the
// largest contiguous changed region in full-resolution pixels, and whether
// that area meets the minimum.
func (d *Differ) Detect(f frame.Frame) (int, bool) {
	g := grayImage(f)
	if d.scale > 1 {
		g = downscale(g, d.scale)
	}
	g = boxBlur(g)

	if d.prev == nil || d.prev.Rect != g.Rect {
		d.prev = g
		return 0, false
	}

	w := g.Rect.Dx()
	h := g.Rect.Dy()
	mask := make([]bool, w*h)
	for i := range g.Pix {
		if absDiff(g.Pix[i], d.prev.Pix[i]) > d.thresh {
			mask[i] = true
		}
	}
	dilate(mask, w, h)

	area := largestRegion(mask, w, h) * d.scale * d.scale
	d.prev = g
	return area, area >= d.minArea
}

// grayImage converts a frame to an image.Gray.
func grayImage(f frame.Frame) *image.Gray {
	return &image.Gray{
		Pix:    f.Gray(),
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// downscale reduces g by the given integer factor using nearest neighbour
// interpolation.
func downscale(g *image.Gray, factor int) *image.Gray {
	w := g.Rect.Dx() / factor
	h := g.Rect.Dy() / factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, g, g.Rect, xdraw.Src, nil)
	return dst
}

// boxBlur applies a single 3x3 box blur pass to suppress sensor noise
// before differencing.
func boxBlur(g *image.Gray) *image.Gray {
	w := g.Rect.Dx()
	h := g.Rect.Dy()
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || xx >= w || yy < 0 || yy >= h {
						continue
					}
					sum += int(g.Pix[yy*g.Stride+xx])
					n++
				}
			}
			out.Pix[y*out.Stride+x] = uint8(sum / n)
		}
	}
	return out
}

// dilate grows the changed mask by one pixel in the 4 cardinal directions,
// filling pinholes in changed regions.
func dilate(mask []bool, w, h int) {
	grown := make([]bool, len(mask))
	copy(grown, mask)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			if x > 0 {
				grown[y*w+x-1] = true
			}
			if x < w-1 {
				grown[y*w+x+1] = true
			}
			if y > 0 {
				grown[(y-1)*w+x] = true
			}
			if y < h-1 {
				grown[(y+1)*w+x] = true
			}
		}
	}
	copy(mask, grown)
}

// largestRegion returns the pixel count of the largest 4-connected region
// of set pixels in mask.
func largestRegion(mask []bool, w, h int) int {
	visited := make([]bool, len(mask))
	queue := make([]int, 0, 64)
	best := 0
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		area := 0
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			area++

			x := i % w
			for _, j := range [4]int{i - 1, i + 1, i - w, i + w} {
				if j < 0 || j >= len(mask) || !mask[j] || visited[j] {
					continue
				}
				// Do not wrap across row boundaries.
				if (j == i-1 && x == 0) || (j == i+1 && x == w-1) {
					continue
				}
				visited[j] = true
				queue = append(queue, j)
			}
		}
		if area > best {
			best = area
		}
	}
	return best
}

// absDiff returns the absolute value of the difference of two uint8 values.
func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
