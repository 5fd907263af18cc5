/*
DESCRIPTION
  camera.go provides the camera connection loop feeding the frame bus. A
  camera cycles Disconnected, Connecting, Connected and Reconnecting
  forever, backing off exponentially on connection failure, and publishes
  only frames that pass the integrity check.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package watch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/skywatchcam/skywatch/device"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Camera connection states.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns a human readable state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Camera owns the connection to a frame-producing device and publishes
// its frames on the bus. Frames of the wrong byte length for the
// configured geometry are discarded and counted, never published.
type Camera struct {
	dev device.Device
	bus *frame.Bus
	log logging.Logger

	width, height int
	backoffBase   time.Duration
	backoffCap    time.Duration
	maxFailures   int

	state    atomic.Int32
	frames   atomic.Uint64
	discards atomic.Uint64

	statMu    sync.Mutex
	lastErr   error
	lastFrame time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewCamera returns a Camera reading from dev and publishing on bus.
func NewCamera(c config.Config, dev device.Device, bus *frame.Bus) *Camera {
	return &Camera{
		dev:         dev,
		bus:         bus,
		log:         c.Logger,
		width:       int(c.Width),
		height:      int(c.Height),
		backoffBase: time.Duration(c.CameraBackoff) * time.Second,
		backoffCap:  time.Duration(c.CameraBackoffMax) * time.Second,
		maxFailures: int(c.CameraMaxFailures),
	}
}

// Start launches the connection loop.
func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.stop = make(chan struct{})
	c.running = true
	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop disconnects the camera and terminates the loop.
func (c *Camera) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()
	// Stopping the device unblocks a read in flight.
	c.dev.Stop()
	c.wg.Wait()
	c.state.Store(int32(Disconnected))
	c.log.Info("camera stopped")
}

// State returns the current connection state.
func (c *Camera) State() State { return State(c.state.Load()) }

// Frames returns the number of frames published.
func (c *Camera) Frames() uint64 { return c.frames.Load() }

// Discards returns the number of frames rejected by the integrity check.
func (c *Camera) Discards() uint64 { return c.discards.Load() }

// LastError returns the most recent connection or read error.
func (c *Camera) LastError() error {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.lastErr
}

// LastFrameTime returns the time of the most recent published frame.
func (c *Camera) LastFrameTime() time.Time {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.lastFrame
}

func (c *Camera) setErr(err error) {
	c.statMu.Lock()
	c.lastErr = err
	c.statMu.Unlock()
}

// nextDelay doubles a backoff delay up to the cap.
func nextDelay(cur, cap time.Duration) time.Duration {
	next := cur * 2
	if next > cap {
		return cap
	}
	return next
}

// run is the connection state machine. Connection failures back off
// exponentially; a successful connection resets the delay.
func (c *Camera) run() {
	defer c.wg.Done()
	defer c.dev.Stop()

	delay := c.backoffBase
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		c.state.Store(int32(Connecting))
		if err := c.dev.Start(); err != nil {
			c.setErr(err)
			c.state.Store(int32(Reconnecting))
			c.log.Warning("camera connection failed", "error", err.Error(), "retryIn", delay.String())
			select {
			case <-c.stop:
				return
			case <-time.After(delay):
			}
			delay = nextDelay(delay, c.backoffCap)
			continue
		}

		c.state.Store(int32(Connected))
		c.log.Info("camera connected")
		delay = c.backoffBase

		if !c.read() {
			return
		}

		c.dev.Stop()
		c.state.Store(int32(Reconnecting))
		select {
		case <-c.stop:
			return
		case <-time.After(delay):
		}
	}
}

// read consumes frames until the stop signal or too many consecutive read
// failures. It returns false when the camera is stopping.
func (c *Camera) read() bool {
	seq := c.frames.Load()
	failures := 0
	for {
		select {
		case <-c.stop:
			return false
		default:
		}

		b, err := c.dev.ReadFrame()
		if err != nil {
			if err == device.ErrStopped {
				select {
				case <-c.stop:
					return false
				default:
				}
			}
			c.setErr(err)
			failures++
			if failures >= c.maxFailures {
				c.log.Warning("too many consecutive read failures, reconnecting", "failures", failures)
				return true
			}
			continue
		}
		failures = 0

		f := frame.Frame{Data: b, Width: c.width, Height: c.height, Seq: seq, Time: time.Now()}
		if !f.Valid() {
			c.discards.Add(1)
			c.log.Debug("discarded frame failing integrity check", "len", len(b))
			continue
		}
		seq++
		c.frames.Add(1)
		c.statMu.Lock()
		c.lastFrame = f.Time
		c.statMu.Unlock()
		c.bus.Publish(f)
	}
}
