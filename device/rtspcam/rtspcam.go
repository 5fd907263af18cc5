/*
DESCRIPTION
  rtspcam.go provides an implementation of the Device interface for RTSP
  IP cameras. An ffmpeg process decodes the stream and pipes raw BGR24
  frames of a fixed geometry, which are read out one frame at a time.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package rtspcam provides an implementation of Device for RTSP cameras.
package rtspcam

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/skywatchcam/skywatch/device"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Used to indicate package in logging.
const pkg = "rtspcam: "

// Configuration field errors.
var (
	errBadURL    = errors.New("camera url bad or unset")
	errBadWidth  = errors.New("width bad or unset, defaulting")
	errBadHeight = errors.New("height bad or unset, defaulting")
)

// Configuration defaults.
const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// RTSPCam is an implementation of the Device interface for an RTSP camera.
// RTSPCam uses an ffmpeg process to decode the stream into raw BGR24 frames
// piped through stdout.
type RTSPCam struct {
	out       io.ReadCloser
	log       logging.Logger
	cfg       config.Config
	cmd       *exec.Cmd
	done      chan struct{}
	frameSize int
	isRunning bool
}

// New returns a new RTSPCam.
func New(l logging.Logger) *RTSPCam {
	return &RTSPCam{log: l}
}

// Name returns the name of the device.
func (c *RTSPCam) Name() string {
	return "RTSPCam"
}

// Set validates the relevant fields of the given Config struct and assigns
// the struct to the RTSPCam's Config. If fields are not valid, an error is
// added to the MultiError and a default value is used where one exists.
func (c *RTSPCam) Set(cfg config.Config) error {
	var errs device.MultiError
	if cfg.CameraURL == "" {
		errs = append(errs, errBadURL)
	}
	if cfg.Width == 0 {
		errs = append(errs, errBadWidth)
		cfg.Width = defaultWidth
	}
	if cfg.Height == 0 {
		errs = append(errs, errBadHeight)
		cfg.Height = defaultHeight
	}
	c.cfg = cfg
	c.frameSize = frame.PixelStride * int(cfg.Width) * int(cfg.Height)
	if len(errs) != 0 {
		return errs
	}
	return nil
}

// Start builds the required arguments for ffmpeg and executes the command,
// piping raw video output from which frames can be read using ReadFrame.
func (c *RTSPCam) Start() error {
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", c.cfg.CameraURL,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height),
		"-an",
		"-",
	}

	c.log.Info(pkg+"ffmpeg args", "args", strings.Join(args, " "))
	c.cmd = exec.Command("ffmpeg", args...)

	var err error
	c.out, err = c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}

	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("could not pipe command error: %w", err)
	}

	c.done = make(chan struct{})
	c.isRunning = true

	// Drain ffmpeg's stderr so the process can't stall on a full pipe; its
	// chatter is only surfaced if the process dies.
	go func() {
		buf, err := io.ReadAll(stderr)
		if err != nil {
			return
		}
		select {
		case <-c.done:
		default:
			if len(buf) != 0 {
				c.log.Debug(pkg+"ffmpeg stderr", "output", tail(string(buf), 400))
			}
		}
	}()

	c.log.Info(pkg + "starting ffmpeg")
	err = c.cmd.Start()
	if err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	c.log.Info(pkg + "ffmpeg started")

	return nil
}

// Stop kills the ffmpeg process and closes the output pipe.
func (c *RTSPCam) Stop() error {
	if !c.isRunning {
		return nil
	}
	c.isRunning = false
	close(c.done)

	if c.cmd == nil || c.cmd.Process == nil {
		return errors.New("ffmpeg process was never started")
	}
	err := c.cmd.Process.Kill()
	if err != nil {
		return fmt.Errorf("could not kill ffmpeg process: %w", err)
	}
	return c.out.Close()
}

// IsRunning returns whether the device is capturing.
func (c *RTSPCam) IsRunning() bool { return c.isRunning }

// ReadFrame reads exactly one frame's worth of raw BGR24 data from the
// ffmpeg pipe. A short read means the stream geometry does not match the
// configured dimensions or the process died; the caller decides whether to
// count it towards a reconnect.
func (c *RTSPCam) ReadFrame() ([]byte, error) {
	if !c.isRunning {
		return nil, device.ErrStopped
	}
	buf := make([]byte, c.frameSize)
	_, err := io.ReadFull(c.out, buf)
	if err != nil {
		if !c.isRunning {
			return nil, device.ErrStopped
		}
		return nil, fmt.Errorf("could not read frame from ffmpeg: %w", err)
	}
	return buf, nil
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
