/*
DESCRIPTION
  api_test.go provides testing for the HTTP API routes.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gin-gonic/gin"

	"github.com/skywatchcam/skywatch/device"
	"github.com/skywatchcam/skywatch/frame"
	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch"
	"github.com/skywatchcam/skywatch/watch/config"
)

func testServer(t *testing.T) (*Server, *watch.Watch, *device.ManualSource) {
	t.Helper()
	c := config.Config{
		CameraURL:   "rtsp://test.invalid/stream",
		Width:       8,
		Height:      6,
		StoragePath: t.TempDir(),
		Logger:      logging.New(logging.Debug, &bytes.Buffer{}, true),
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("could not validate test config: %v", err)
	}
	dev := device.NewManualSource(32)
	w, err := watch.New(c, watch.Options{Device: dev})
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	return New(w, ""), w, dev
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStatusRoute(t *testing.T) {
	s, _, _ := testServer(t)
	rec := do(s.Router(), http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got watch.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad status payload: %v", err)
	}
	if got.Camera.State != "disconnected" {
		t.Errorf("camera state = %s, want disconnected before start", got.Camera.State)
	}
}

func TestTimelapseRoutes(t *testing.T) {
	s, w, _ := testServer(t)
	f := frame.Frame{Width: 8, Height: 6, Data: make([]byte, 8*6*frame.PixelStride)}
	if err := w.Store().AppendTimelapse("2026-08-30", f, time.Now()); err != nil {
		t.Fatalf("could not seed capture: %v", err)
	}

	rec := do(s.Router(), http.MethodGet, "/api/timelapse/dates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dates status = %d", rec.Code)
	}
	var dates struct {
		Dates []store.DaySummary `json:"dates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dates); err != nil {
		t.Fatalf("bad dates payload: %v", err)
	}
	if len(dates.Dates) != 1 || dates.Dates[0].Date != "2026-08-30" {
		t.Errorf("dates = %+v", dates.Dates)
	}

	rec = do(s.Router(), http.MethodGet, "/api/timelapse/frames/2026-08-30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("frames status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "000000.jpg") {
		t.Errorf("frames payload missing capture: %s", rec.Body.String())
	}
}

func TestMotionEventRoutes(t *testing.T) {
	s, w, _ := testServer(t)
	f := frame.Frame{Width: 8, Height: 6, Data: make([]byte, 8*6*frame.PixelStride)}
	ev, err := w.Store().SaveEvent(time.Now(), 700, f, []frame.Frame{f, f})
	if err != nil {
		t.Fatalf("could not seed event: %v", err)
	}

	rec := do(s.Router(), http.MethodGet, "/api/motion/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}
	var events struct {
		Events []store.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("bad events payload: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].Area != 700 {
		t.Errorf("events = %+v", events.Events)
	}

	rec = do(s.Router(), http.MethodGet, fmt.Sprintf("/api/motion/events/%d/frames", ev.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("event frames status = %d", rec.Code)
	}

	rec = do(s.Router(), http.MethodGet, "/api/motion/events/999/frames", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d, want 404", rec.Code)
	}
}

func TestResetDisabledTracker(t *testing.T) {
	s, _, _ := testServer(t)
	rec := do(s.Router(), http.MethodPost, "/api/solargraph/reset", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("reset of disabled tracker = %d, want 404", rec.Code)
	}
}

func TestCompositeNotFound(t *testing.T) {
	s, _, _ := testServer(t)
	rec := do(s.Router(), http.MethodGet, "/api/lunar/composite", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing composite = %d, want 404", rec.Code)
	}
}

func TestSettingsRoutes(t *testing.T) {
	s, w, _ := testServer(t)

	rec := do(s.Router(), http.MethodGet, "/api/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "camera_url") {
		t.Error("settings payload missing camera_url")
	}

	body, _ := json.Marshal(map[string]string{"TimelapseInterval": "90"})
	rec = do(s.Router(), http.MethodPost, "/api/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("post settings = %d: %s", rec.Code, rec.Body.String())
	}
	if got := w.Config().TimelapseInterval; got != 90 {
		t.Errorf("TimelapseInterval = %d after update, want 90", got)
	}

	// Out of range values are rejected and nothing changes.
	body, _ = json.Marshal(map[string]string{"JPEGQuality": "200"})
	rec = do(s.Router(), http.MethodPost, "/api/settings", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad settings = %d, want 422", rec.Code)
	}
	if got := w.Config().JPEGQuality; got == 200 {
		t.Error("rejected value installed")
	}
}

func TestSnapshotServesLatestFrame(t *testing.T) {
	s, w, dev := testServer(t)
	if err := w.Start(); err != nil {
		t.Fatalf("could not start session: %v", err)
	}
	defer w.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		b := make([]byte, 8*6*frame.PixelStride)
		for {
			select {
			case <-stop:
				return
			default:
				dev.Queue(b)
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	rec := do(s.Router(), http.MethodGet, "/api/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %s", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty snapshot body")
	}
}
