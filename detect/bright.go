/*
DESCRIPTION
  bright.go provides a pure Go bright-circle detection algorithm for sun
  and moon tracking. Pixels above the brightness threshold are grouped into
  connected components; each component is screened for circularity, radius
  bounds, brightness uniformity and contrast against its surroundings, and
  the best-scoring survivor is returned.

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

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/skywatchcam/skywatch/frame"
)

// Candidate screening constants. A genuine sun or moon disc is uniformly
// bright, clear of the frame edge, and markedly brighter than the sky
// around it.
const (
	edgeMargin    = 50   // Minimum distance of the centre from any frame edge, pixels.
	maxStdDev     = 50.0 // Maximum brightness standard deviation inside the disc.
	minSurround   = 30.0 // Minimum brightness drop from disc to surrounding ring.
	minExtent     = 0.55 // Minimum fill ratio of the component in its bounding box.
	maxAspectSkew = 1.6  // Maximum bounding-box aspect ratio of a disc.
)

// BrightCircle is a bright-circle detection algorithm working on
// thresholded connected components.
type BrightCircle struct {
	thresh uint8
	minR   int
	maxR   int
}

// NewBrightCircle returns a pointer to a new BrightCircle finder using the
// given parameters.
func NewBrightCircle(p CircleParams) *BrightCircle {
	return &BrightCircle{thresh: uint8(p.Brightness), minR: int(p.MinRadius), maxR: int(p.MaxRadius)}
}

// Close satisfies CircleFinder; the pure Go finder holds no external
// resources.
func (d *BrightCircle) Close() error { return nil }

// Find scans the frame for the brightest qualifying near-circular region.
// Radius bounds are inclusive on both ends. When multiple candidates
// qualify, only the single best-scoring one is returned, so a bright
// reflection cannot be accumulated alongside the real target.
func (d *BrightCircle) Find(f frame.Frame) (Circle, bool) {
	gray := f.Gray()
	w, h := f.Width, f.Height

	mask := make([]bool, w*h)
	for i, v := range gray {
		if v >= d.thresh {
			mask[i] = true
		}
	}

	var (
		best      Circle
		bestScore float64
		found     bool
	)

	visited := make([]bool, len(mask))
	var queue []int
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		// Flood fill one component, tracking extent and centroid.
		var pixels []int
		minX, minY, maxX, maxY := w, h, 0, 0
		sumX, sumY := 0, 0
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			pixels = append(pixels, i)

			x, y := i%w, i/w
			sumX += x
			sumY += y
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for _, j := range [4]int{i - 1, i + 1, i - w, i + w} {
				if j < 0 || j >= len(mask) || !mask[j] || visited[j] {
					continue
				}
				if (j == i-1 && x == 0) || (j == i+1 && x == w-1) {
					continue
				}
				visited[j] = true
				queue = append(queue, j)
			}
		}

		c, score, ok := d.screen(gray, w, h, pixels, minX, minY, maxX, maxY, sumX, sumY)
		if ok && score > bestScore {
			best = c
			bestScore = score
			found = true
		}
	}

	return best, found
}

// screen validates one thresholded component as a disc candidate and scores
// it. The score favours bright regions close to the maximum permitted
// radius, matching the accumulation preference for the dominant body over
// stray highlights.
func (d *BrightCircle) screen(gray []byte, w, h int, pixels []int, minX, minY, maxX, maxY, sumX, sumY int) (Circle, float64, bool) {
	area := len(pixels)
	r := int(math.Round(math.Sqrt(float64(area) / math.Pi)))
	if r < d.minR || r > d.maxR {
		return Circle{}, 0, false
	}

	// A disc roughly fills its bounding box and the box is roughly square.
	bw := maxX - minX + 1
	bh := maxY - minY + 1
	if float64(area)/float64(bw*bh) < minExtent*math.Pi/4 {
		return Circle{}, 0, false
	}
	aspect := float64(bw) / float64(bh)
	if aspect > maxAspectSkew || aspect < 1/maxAspectSkew {
		return Circle{}, 0, false
	}

	cx := sumX / area
	cy := sumY / area
	if cx < edgeMargin || cx > w-edgeMargin || cy < edgeMargin || cy > h-edgeMargin {
		return Circle{}, 0, false
	}

	vals := make([]float64, area)
	for i, p := range pixels {
		vals[i] = float64(gray[p])
	}
	mean := stat.Mean(vals, nil)
	if mean < float64(d.thresh) {
		return Circle{}, 0, false
	}
	if stat.StdDev(vals, nil) > maxStdDev {
		return Circle{}, 0, false
	}

	// The sky just outside the disc must be markedly darker; a glare patch
	// fades out gradually and fails this.
	outer := ringMean(gray, w, h, cx, cy, r, int(float64(r)*1.5))
	if outer >= 0 && mean-outer < minSurround {
		return Circle{}, 0, false
	}

	score := mean * float64(r) / float64(d.maxR)
	return Circle{X: cx, Y: cy, R: r, Brightness: mean}, score, true
}

// ringMean returns the mean brightness of pixels between radius rIn and
// rOut of (cx,cy), or -1 if the ring contains no pixels inside the frame.
func ringMean(gray []byte, w, h, cx, cy, rIn, rOut int) float64 {
	var sum, n int
	for y := cy - rOut; y <= cy+rOut; y++ {
		if y < 0 || y >= h {
			continue
		}
		for x := cx - rOut; x <= cx+rOut; x++ {
			if x < 0 || x >= w {
				continue
			}
			dx, dy := x-cx, y-cy
			d2 := dx*dx + dy*dy
			if d2 <= rIn*rIn || d2 > rOut*rOut {
				continue
			}
			sum += int(gray[y*w+x])
			n++
		}
	}
	if n == 0 {
		return -1
	}
	return float64(sum) / float64(n)
}
