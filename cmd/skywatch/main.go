/*
DESCRIPTION
  skywatch runs a SkyWatch capture session: an RTSP sky camera feeding
  timelapse, motion and celestial tracking services, with an HTTP API for
  monitoring and control.

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

// Package main is the SkyWatch capture daemon.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/nathan-osman/go-sunrise"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/skywatchcam/skywatch/api"
	"github.com/skywatchcam/skywatch/notify"
	"github.com/skywatchcam/skywatch/service"
	"github.com/skywatchcam/skywatch/watch"
	"github.com/skywatchcam/skywatch/watch/config"
)

// Current software version.
const version = "v0.3.0"

// Logging configuration.
const (
	defaultLogPath = "/var/log/skywatch/skywatch.log"
	logMaxSize     = 100 // MB
	logMaxBackup   = 5
	logMaxAge      = 28 // days
)

const defaultConfigPath = "/etc/skywatch/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	logPath := flag.String("log", defaultLogPath, "path to the rotated log file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// Log to a rotated file and stderr.
	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	logLevel := cfg.LogLevel
	if logLevel < logging.Debug || logLevel > logging.Fatal {
		logLevel = logging.Info
	}
	log := logging.New(logLevel, io.MultiWriter(fileLog, os.Stderr), cfg.Suppress)
	cfg.Logger = log
	log.Info("starting skywatch", "version", version, "config", *configPath)

	opts := watch.Options{
		SunOracle:  daylight(cfg.Latitude, cfg.Longitude),
		MoonOracle: night(cfg.Latitude, cfg.Longitude),
	}

	var notifier *notify.MQTT
	if cfg.MQTTEnabled {
		notifier, err = notify.NewMQTT(cfg)
		if err != nil {
			// Capture runs fine without notification.
			log.Warning("mqtt notification disabled", "error", err.Error())
		} else {
			opts.Notify = notifier.Notify
			defer notifier.Close()
		}
	}

	w, err := watch.New(cfg, opts)
	if err != nil {
		log.Fatal("could not assemble capture session", "error", err.Error())
	}
	if err := w.Start(); err != nil {
		log.Fatal("could not start capture session", "error", err.Error())
	}

	srv := api.New(w, *configPath)
	if err := srv.Start(); err != nil {
		log.Fatal("could not start api", "error", err.Error())
	}

	// Apply config file edits as they land; a bad file leaves the running
	// session untouched.
	stopWatching, err := config.Watch(*configPath, log, func() {
		next, err := config.Load(*configPath)
		if err != nil {
			log.Error("ignoring unreadable config change", "error", err.Error())
			return
		}
		next.Logger = log
		if err := w.SetConfig(next); err != nil {
			log.Error("ignoring rejected config change", "error", err.Error())
		}
	})
	if err != nil {
		log.Warning("config file watch unavailable", "error", err.Error())
	} else {
		defer stopWatching()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", "signal", s.String())

	srv.Stop()
	w.Stop()
}

// daylight returns an oracle reporting true between local sunrise and
// sunset at the given coordinates.
func daylight(lat, lng float64) service.Oracle {
	return func(t time.Time) bool {
		rise, set := sunrise.SunriseSunset(lat, lng, t.Year(), t.Month(), t.Day())
		if rise.IsZero() || set.IsZero() {
			return false
		}
		u := t.UTC()
		return u.After(rise) && u.Before(set)
	}
}

// night returns the complement oracle for moon tracking.
func night(lat, lng float64) service.Oracle {
	day := daylight(lat, lng)
	return func(t time.Time) bool { return !day(t) }
}
