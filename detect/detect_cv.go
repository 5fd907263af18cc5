//go:build withcv
// +build withcv

/*
DESCRIPTION
  detect_cv.go provides detector constructors and implementations for
  builds with OpenCV available, using gocv for frame differencing and
  Hough circle detection.

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

package detect

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/skywatchcam/skywatch/frame"
)

var colorWhite = color.RGBA{255, 255, 255, 0}

// NewMotionDetector returns an OpenCV-backed frame-differencing motion
// detector.
func NewMotionDetector(p MotionParams) MotionDetector { return newCVDiffer(p) }

// NewCircleFinder returns an OpenCV-backed bright-circle finder.
func NewCircleFinder(p CircleParams) CircleFinder { return newCVCircle(p) }

// cvDiffer is a motion detection algorithm. Frames are downscaled,
// converted to grayscale and blurred, then differenced against the
// previous frame. The area of the largest contour of thresholded change
// decides the trigger.
type cvDiffer struct {
	thresh  float32
	minArea float64
	scale   float64

	prev   gocv.Mat
	seeded bool
}

func newCVDiffer(p MotionParams) *cvDiffer {
	scale := 1.0
	if p.Downscaling > 1 {
		scale = 1 / float64(p.Downscaling)
	}
	return &cvDiffer{
		thresh:  float32(p.Sensitivity),
		minArea: float64(p.MinArea) * scale * scale,
		scale:   scale,
		prev:    gocv.NewMat(),
	}
}

// Close frees the OpenCV resources held by the detector.
func (d *cvDiffer) Close() error {
	return d.prev.Close()
}

// Detect implements MotionDetector. The first frame seeds the reference
// and never triggers. The returned area is in full-resolution pixels.
func (d *cvDiffer) Detect(f frame.Frame) (int, bool) {
	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return 0, false
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if d.scale != 1 {
		gocv.Resize(gray, &gray, image.Point{}, d.scale, d.scale, gocv.InterpolationNearestNeighbor)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	if !d.seeded {
		gray.CopyTo(&d.prev)
		d.seeded = true
		return 0, false
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, d.prev, &diff)
	gocv.Threshold(diff, &diff, d.thresh, 255, gocv.ThresholdBinary)
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(diff, &diff, kernel)

	contours := gocv.FindContours(diff, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	var largest float64
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > largest {
			largest = a
		}
	}

	gray.CopyTo(&d.prev)

	area := int(largest / (d.scale * d.scale))
	return area, largest >= d.minArea
}

// cvCircle finds bright circles with a Hough transform, keeping only the
// brightest qualifying candidate per frame.
type cvCircle struct {
	thresh float32
	minR   int
	maxR   int
}

func newCVCircle(p CircleParams) *cvCircle {
	return &cvCircle{thresh: float32(p.Brightness), minR: int(p.MinRadius), maxR: int(p.MaxRadius)}
}

func (d *cvCircle) Close() error { return nil }

// Find implements CircleFinder. Radius bounds are inclusive on both ends.
func (d *cvCircle) Find(f frame.Frame) (Circle, bool) {
	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return Circle{}, false
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(9, 9), 2, 2, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, 1,
		float64(gray.Rows())/8, 100, 30, d.minR, d.maxR)

	var (
		best      Circle
		bestScore float64
		found     bool
	)
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		cx, cy, r := int(v[0]), int(v[1]), int(v[2])
		if r < d.minR || r > d.maxR {
			continue
		}
		mean := discMean(gray, cx, cy, r)
		if mean < float64(d.thresh) {
			continue
		}
		score := mean * float64(r) / float64(d.maxR)
		if score > bestScore {
			best = Circle{X: cx, Y: cy, R: r, Brightness: mean}
			bestScore = score
			found = true
		}
	}
	return best, found
}

// discMean returns the mean brightness inside the circle of radius r at
// (cx,cy) of the grayscale mat.
func discMean(gray gocv.Mat, cx, cy, r int) float64 {
	mask := gocv.NewMatWithSize(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Circle(&mask, image.Pt(cx, cy), r, colorWhite, -1)
	mean := gray.MeanWithMask(mask)
	return mean.Val1
}
