/*
DESCRIPTION
  api.go provides the HTTP surface of a SkyWatch instance: status, live
  frames, capture listings, composite access and settings management.

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

// Package api serves the HTTP API of a capture session.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/service"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch"
	"github.com/skywatchcam/skywatch/watch/config"
)

const (
	snapshotTimeout = 5 * time.Second
	streamBoundary  = "skywatchframe"
	shutdownGrace   = 3 * time.Second
)

// Server serves the HTTP API for one capture session.
type Server struct {
	w       *watch.Watch
	cfgPath string
	log     logging.Logger

	subSeq atomic.Uint64
	srv    *http.Server
}

// New returns a Server for the session. cfgPath is where settings updates
// are persisted; empty disables persistence.
func New(w *watch.Watch, cfgPath string) *Server {
	return &Server{w: w, cfgPath: cfgPath, log: w.Config().Logger}
}

// Router builds the gin engine with all API routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/status", s.status)
	api.GET("/snapshot", s.snapshot)
	api.GET("/stream", s.stream)
	api.GET("/timelapse/dates", s.timelapseDates)
	api.GET("/timelapse/frames/:date", s.timelapseFrames)
	api.GET("/motion/events", s.motionEvents)
	api.GET("/motion/events/:id/frames", s.eventFrames)
	api.GET("/solargraph/composite", s.composite(config.BodySun))
	api.GET("/lunar/composite", s.composite(config.BodyMoon))
	api.POST("/solargraph/reset", s.reset(s.w.Sun))
	api.POST("/lunar/reset", s.reset(s.w.Moon))
	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.postSettings)
	return r
}

// Start serves the API on the configured address until Stop.
func (s *Server) Start() error {
	s.srv = &http.Server{Addr: s.w.Config().HTTPAddress, Handler: s.Router()}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server failed", "error", err.Error())
		}
	}()
	s.log.Info("api listening", "address", s.srv.Addr)
	return nil
}

// Stop shuts the server down, allowing in-flight requests a short grace
// period.
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.srv.Shutdown(ctx)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.w.Status())
}

// latest subscribes to the bus and waits for one frame.
func (s *Server) latest(timeout time.Duration) (frame.Frame, bool) {
	name := fmt.Sprintf("api-%d", s.subSeq.Add(1))
	bus := s.w.Bus()
	sub, err := bus.Subscribe(name, frame.LatestWins, 0)
	if err != nil {
		return frame.Frame{}, false
	}
	defer bus.Unsubscribe(name)

	got := make(chan frame.Frame, 1)
	go func() {
		if f, ok := sub.Next(); ok {
			got <- f
		}
		close(got)
	}()
	select {
	case f, ok := <-got:
		return f, ok
	case <-time.After(timeout):
		return frame.Frame{}, false
	}
}

func (s *Server) snapshot(c *gin.Context) {
	f, ok := s.latest(snapshotTimeout)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame available"})
		return
	}
	b, err := store.EncodeJPEG(f, s.w.Config().JPEGQualityLive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", b)
}

// stream serves an MJPEG stream from a latest-wins subscription until the
// client disconnects.
func (s *Server) stream(c *gin.Context) {
	name := fmt.Sprintf("api-stream-%d", s.subSeq.Add(1))
	bus := s.w.Bus()
	sub, err := bus.Subscribe(name, frame.LatestWins, 0)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer bus.Unsubscribe(name)

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	quality := s.w.Config().JPEGQualityLive
	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		default:
		}
		f, ok := sub.Next()
		if !ok {
			return
		}
		b, err := store.EncodeJPEG(f, quality)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(b))
		if _, err := c.Writer.Write(b); err != nil {
			return
		}
		fmt.Fprint(c.Writer, "\r\n")
		c.Writer.Flush()
	}
}

func (s *Server) timelapseDates(c *gin.Context) {
	days, err := s.w.Store().Dates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": days})
}

func (s *Server) timelapseFrames(c *gin.Context) {
	frames, err := s.w.Store().TimelapseFrames(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": c.Param("date"), "frames": frames})
}

func (s *Server) motionEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
		return
	}
	evs, err := s.w.Store().Events(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

func (s *Server) eventFrames(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad event id"})
		return
	}
	paths, err := s.w.Store().EventFrames(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "frames": paths})
}

func (s *Server) composite(body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.w.Store().CompositeJPEG(body)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no composite yet"})
			return
		}
		c.Data(http.StatusOK, "image/jpeg", b)
	}
}

func (s *Server) reset(tracker func() *service.Celestial) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := tracker()
		if t == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker disabled"})
			return
		}
		if err := t.Reset(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": t.Name()})
	}
}

func (s *Server) getSettings(c *gin.Context) {
	cfg := s.w.Config()
	b, err := yaml.Marshal(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/x-yaml", b)
}

// postSettings applies a map of variable names to values. Valid updates
// restart the affected services and are persisted with a backup of the
// previous file; invalid ones leave the running config untouched.
func (s *Server) postSettings(c *gin.Context) {
	var vars map[string]string
	if err := c.ShouldBindJSON(&vars); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.w.Update(vars); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if s.cfgPath != "" {
		if err := config.Save(s.cfgPath, s.w.Config()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(vars)})
}
