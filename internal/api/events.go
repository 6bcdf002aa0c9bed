// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/log"
)

// handleEvents streams download progress as Server-Sent Events. An optional
// ?url= query restricts the stream to one download.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeStatus(w, r, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Event stream unavailable")
		return
	}
	var filter string
	if err := runtime.BindQueryParameter("form", true, false, "url", r.URL.Query(), &filter); err != nil {
		writeStatus(w, r, http.StatusBadRequest, "INVALID_QUERY", "Invalid url query parameter")
		return
	}
	rc := http.NewResponseController(w)

	sub, err := s.deps.Bus.Subscribe(r.Context(), bus.TopicDownloadProgress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = sub.Close() }()

	// Streams are long-lived; lift any server write deadline.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "retry: 3000\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "events")
	logger.Debug().Str(log.FieldEvent, "events.subscribed").Str(log.FieldURL, filter).Msg("event stream opened")
	defer logger.Debug().Str(log.FieldEvent, "events.closed").Msg("event stream closed")

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.rootCtx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			ev, isProgress := msg.(bus.ProgressEvent)
			if !isProgress || (filter != "" && ev.URL != filter) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", bus.TopicDownloadProgress, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
