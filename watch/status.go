/*
DESCRIPTION
  status.go provides the read-only status snapshot of a capture session.

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
	"time"

	"github.com/skywatchcam/skywatch/service"
)

// CameraStatus is a snapshot of the camera connection.
type CameraStatus struct {
	State     string    `json:"state"`
	Frames    uint64    `json:"frames"`
	Discards  uint64    `json:"discards"`
	LastError string    `json:"last_error,omitempty"`
	LastFrame time.Time `json:"last_frame"`
}

// ServiceStatus is a snapshot of one capture service. Only enabled
// services are constructed, so every entry reports enabled; disabled
// services are absent from the status map entirely.
type ServiceStatus struct {
	Enabled bool          `json:"enabled"`
	Running bool          `json:"running"`
	Stats   service.Stats `json:"stats"`
}

// Status is a read-only aggregate snapshot of a capture session.
type Status struct {
	Running   bool                     `json:"running"`
	Camera    CameraStatus             `json:"camera"`
	Published uint64                   `json:"published"`
	Services  map[string]ServiceStatus `json:"services"`
}

// Status assembles a snapshot of the session. It is safe to call at any
// time, including while stopped.
func (w *Watch) Status() Status {
	st := Status{
		Running:  w.Running(),
		Services: make(map[string]ServiceStatus, len(w.services)),
	}

	st.Camera = CameraStatus{
		State:     w.cam.State().String(),
		Frames:    w.cam.Frames(),
		Discards:  w.cam.Discards(),
		LastFrame: w.cam.LastFrameTime(),
	}
	if err := w.cam.LastError(); err != nil {
		st.Camera.LastError = err.Error()
	}
	st.Published = w.bus.Published()

	for _, s := range w.services {
		st.Services[s.Name()] = ServiceStatus{Enabled: true, Running: s.Running(), Stats: s.Stats()}
	}
	return st
}
