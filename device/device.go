/*
DESCRIPTION
  device.go provides Device, an interface that describes a configurable
  video source that can be started and stopped and from which decoded
  frames may be obtained, along with ManualSource, a software-fed
  implementation used in testing.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package device provides an interface and implementations for video input
// devices that can be started and stopped and from which raw frame data can
// be obtained.
package device

import (
	"errors"
	"fmt"

	"github.com/skywatchcam/skywatch/watch/config"
)

// ErrStopped is returned by ReadFrame once a device has been stopped. The
// capture loop treats it as a terminal signal rather than a read failure.
var ErrStopped = errors.New("device: stopped")

// Device describes a configurable video source from which raw frame data
// can be obtained. Each ReadFrame call yields the pixel data of exactly one
// frame in the format the device was configured for.
type Device interface {
	// Name returns the name of the Device.
	Name() string

	// Set allows for configuration of the Device using a Config struct. All,
	// some or none of the fields of the Config struct may be used for
	// configuration by an implementation.
	Set(c config.Config) error

	// Start will start the Device capturing video data; after which ReadFrame
	// may be called to obtain decoded frames.
	Start() error

	// Stop will stop the Device from capturing video data. From this point
	// ReadFrame returns ErrStopped.
	Stop() error

	// IsRunning is used to determine if the device is running.
	IsRunning() bool

	// ReadFrame blocks until the next frame's raw pixel data is available
	// and returns it. The buffer belongs to the caller.
	ReadFrame() ([]byte, error)
}

// MultiError collects errors during validation of configuration parameters
// for Devices.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// ManualSource is an implementation of Device representing a manual input
// mechanism, i.e. frame data is supplied through software via Queue. It is
// intended for testing the capture loop and services without a camera.
type ManualSource struct {
	frames    chan []byte
	stop      chan struct{}
	isRunning bool
}

// NewManualSource provides a new ManualSource buffering up to n queued
// frames.
func NewManualSource(n int) *ManualSource {
	return &ManualSource{frames: make(chan []byte, n)}
}

// Name returns the name of ManualSource i.e. "ManualSource".
func (m *ManualSource) Name() string { return "ManualSource" }

// Set is a stub to satisfy the Device interface; no configuration fields
// are required by ManualSource.
func (m *ManualSource) Set(c config.Config) error { return nil }

// Start marks the source running.
func (m *ManualSource) Start() error {
	m.stop = make(chan struct{})
	m.isRunning = true
	return nil
}

// Stop unblocks any pending ReadFrame and marks the source stopped.
func (m *ManualSource) Stop() error {
	if !m.isRunning {
		return nil
	}
	m.isRunning = false
	close(m.stop)
	return nil
}

// IsRunning reports whether Start has been called and Stop has not been
// called after.
func (m *ManualSource) IsRunning() bool { return m.isRunning }

// Queue supplies one frame's raw data to be returned by a subsequent
// ReadFrame call.
func (m *ManualSource) Queue(b []byte) {
	m.frames <- b
}

// ReadFrame returns the next queued frame, blocking until one is queued or
// the source is stopped.
func (m *ManualSource) ReadFrame() ([]byte, error) {
	select {
	case b := <-m.frames:
		return b, nil
	case <-m.stop:
		return nil, ErrStopped
	}
}
