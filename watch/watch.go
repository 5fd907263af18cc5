/*
DESCRIPTION
  watch.go provides the orchestrator of a SkyWatch capture session. It
  owns the camera loop, the frame bus and the capture services, wires
  enabled services to bus subscriptions, and coordinates startup, shutdown
  and configuration updates.

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

// Package watch provides the capture engine orchestrator and the camera
// connection loop.
package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/skywatchcam/skywatch/detect"
	"github.com/skywatchcam/skywatch/device"
	"github.com/skywatchcam/skywatch/device/rtspcam"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/service"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Bus subscription names of the built-in services.
const (
	subTimelapse = "timelapse"
	subMotion    = "motion"
	subSolar     = "solar"
	subLunar     = "lunar"
)

const pruneInterval = 24 * time.Hour

// Options carries the orchestrator's external collaborators. Zero-value
// fields select the production defaults.
type Options struct {
	// Device produces the frames. Nil selects the ffmpeg-piped RTSP
	// reader configured from the camera settings.
	Device device.Device

	// Store persists capture artifacts. Nil opens the store at the
	// configured storage path.
	Store *store.Store

	// SunOracle and MoonOracle gate the celestial trackers. They are
	// consulted only when the matching daytime/nighttime-only setting is
	// enabled; nil with gating enabled disables that tracker's gate.
	SunOracle  service.Oracle
	MoonOracle service.Oracle

	// Notify is called with each finalized motion event.
	Notify service.Notifier
}

// Watch is a capture session. Construct with New, then Start. A Watch
// whose config changes is updated with Update, which restarts the
// affected machinery; live mutation never happens.
type Watch struct {
	cfg  config.Config
	opts Options

	bus *frame.Bus
	dev device.Device
	cam *Camera
	st  *store.Store

	services  []service.Service
	subNames  []string
	sun, moon *service.Celestial

	mu      sync.Mutex
	running bool
	stale   bool // Set by Stop; Start rebuilds the bus and services.
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New returns a Watch assembled from the config. The config is validated
// first; enabled services are constructed and subscribed, disabled ones
// cost nothing.
func New(c config.Config, opts Options) (*Watch, error) {
	w := &Watch{cfg: c, opts: opts}
	if err := w.setup(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watch) setup() error {
	if err := w.cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if w.st == nil {
		w.st = w.opts.Store
	}
	if w.st == nil {
		st, err := store.New(w.cfg)
		if err != nil {
			return fmt.Errorf("could not open store: %w", err)
		}
		w.st = st
	}

	w.dev = w.opts.Device
	if w.dev == nil {
		w.dev = rtspcam.New(w.cfg.Logger)
	}
	if err := w.dev.Set(w.cfg); err != nil {
		return fmt.Errorf("could not configure device: %w", err)
	}

	w.bus = frame.NewBus()
	w.cam = NewCamera(w.cfg, w.dev, w.bus)
	w.services = nil
	w.subNames = nil
	w.sun, w.moon = nil, nil

	if w.cfg.TimelapseEnabled {
		sub, err := w.bus.Subscribe(subTimelapse, frame.LatestWins, 0)
		if err != nil {
			return err
		}
		w.addService(sub.Name(), service.NewTimelapse(w.cfg, sub, w.st))
	}

	if w.cfg.MotionEnabled {
		sub, err := w.bus.Subscribe(subMotion, frame.Queued, int(w.cfg.MaxFrameQueue))
		if err != nil {
			return err
		}
		det := detect.NewMotionDetector(detect.MotionParams{
			Sensitivity: w.cfg.MotionSensitivity,
			MinArea:     w.cfg.MotionMinArea,
			Downscaling: w.cfg.MotionDownscaling,
		})
		w.addService(sub.Name(), service.NewMotion(w.cfg, sub, w.st, det, w.opts.Notify))
	}

	if w.cfg.SolarEnabled {
		sub, err := w.bus.Subscribe(subSolar, frame.LatestWins, 0)
		if err != nil {
			return err
		}
		finder := detect.NewCircleFinder(detect.CircleParams{
			Brightness: w.cfg.SolarBrightness,
			MinRadius:  w.cfg.SolarMinRadius,
			MaxRadius:  w.cfg.SolarMaxRadius,
		})
		var oracle service.Oracle
		if w.cfg.SolarDaytimeOnly {
			oracle = w.opts.SunOracle
		}
		w.sun = service.NewCelestial(w.cfg, config.BodySun, sub, w.st, finder, oracle)
		w.addService(sub.Name(), w.sun)
	}

	if w.cfg.LunarEnabled {
		sub, err := w.bus.Subscribe(subLunar, frame.LatestWins, 0)
		if err != nil {
			return err
		}
		finder := detect.NewCircleFinder(detect.CircleParams{
			Brightness: w.cfg.LunarBrightness,
			MinRadius:  w.cfg.LunarMinRadius,
			MaxRadius:  w.cfg.LunarMaxRadius,
		})
		var oracle service.Oracle
		if w.cfg.LunarNighttimeOnly {
			oracle = w.opts.MoonOracle
		}
		w.moon = service.NewCelestial(w.cfg, config.BodyMoon, sub, w.st, finder, oracle)
		w.addService(sub.Name(), w.moon)
	}

	return nil
}

func (w *Watch) addService(sub string, s service.Service) {
	w.services = append(w.services, s)
	w.subNames = append(w.subNames, sub)
}

// Start brings the session up: camera first, then each enabled service.
func (w *Watch) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	// A stopped session's bus and subscriptions are closed; rebuild
	// before reuse.
	if w.stale {
		if err := w.setup(); err != nil {
			return err
		}
		w.stale = false
	}

	if err := w.cam.Start(); err != nil {
		return fmt.Errorf("could not start camera: %w", err)
	}
	for _, s := range w.services {
		if err := s.Start(); err != nil {
			return fmt.Errorf("could not start %s: %w", s.Name(), err)
		}
	}

	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.prune()

	w.running = true
	w.cfg.Logger.Info("capture session started", "services", len(w.services))
	return nil
}

// Stop tears the session down in reverse dependency order: services
// first, abandoning in-flight work safely, then the bus, then the camera.
func (w *Watch) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false

	close(w.stop)
	w.wg.Wait()

	for i, s := range w.services {
		// Unsubscribing first releases a service blocked on delivery.
		w.bus.Unsubscribe(w.subNames[i])
		s.Stop()
	}
	w.bus.Close()
	w.cam.Stop()
	w.stale = true
	w.cfg.Logger.Info("capture session stopped")
}

// Running reports whether the session is active.
func (w *Watch) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Update applies configuration variables to a session. The session is
// stopped, the new values are validated and installed, and the session is
// rebuilt and restarted. On validation failure the previous configuration
// stays in effect.
func (w *Watch) Update(vars map[string]string) error {
	next := w.cfg
	next.Update(vars)
	return w.SetConfig(next)
}

// SetConfig replaces the whole configuration, restarting a running
// session on the new values. Used for wholesale reloads such as a changed
// config file.
func (w *Watch) SetConfig(next config.Config) error {
	wasRunning := w.Running()
	if wasRunning {
		w.Stop()
	}

	if err := next.Validate(); err != nil {
		if wasRunning {
			if serr := w.Start(); serr != nil {
				return fmt.Errorf("config rejected and restart failed: %w", serr)
			}
		}
		return fmt.Errorf("config rejected: %w", err)
	}

	// A changed storage path needs the store reopened, unless the store
	// was injected by the caller.
	if next.StoragePath != w.cfg.StoragePath && w.opts.Store == nil && w.st != nil {
		w.st.Close()
		w.st = nil
	}

	w.cfg = next
	if wasRunning {
		return w.Start()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.setup(); err != nil {
		return err
	}
	w.stale = false
	return nil
}

// Bus returns the frame bus for additional subscribers such as the live
// stream.
func (w *Watch) Bus() *frame.Bus { return w.bus }

// Store returns the artifact store backing the session.
func (w *Watch) Store() *store.Store { return w.st }

// Sun returns the sun tracker, or nil when solar capture is disabled.
func (w *Watch) Sun() *service.Celestial { return w.sun }

// Moon returns the moon tracker, or nil when lunar capture is disabled.
func (w *Watch) Moon() *service.Celestial { return w.moon }

// Config returns a copy of the active configuration.
func (w *Watch) Config() config.Config { return w.cfg }

// prune sweeps expired artifacts once a day.
func (w *Watch) prune() {
	defer w.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.st.Prune(w.cfg.RetentionDays); err != nil {
				w.cfg.Logger.Error("retention sweep failed", "error", err.Error())
			}
		}
	}
}
