// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"

	"github.com/ManuGH/vidgrab/internal/log"
)

// TopicDownloadProgress carries ProgressEvent messages.
const TopicDownloadProgress = "download_progress"

// ProgressEvent is the payload of TopicDownloadProgress.
type ProgressEvent struct {
	Progress string `json:"progress"`
	URL      string `json:"url,omitempty"`
}

// ProgressSink publishes download progress onto a bus.
type ProgressSink struct {
	bus Bus
}

// NewProgressSink returns a sink publishing on b.
func NewProgressSink(b Bus) *ProgressSink {
	return &ProgressSink{bus: b}
}

// Progress publishes one event. Failures are logged and otherwise ignored;
// the next event supersedes a lost one.
func (s *ProgressSink) Progress(ctx context.Context, url, progress string) {
	if s == nil || s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, TopicDownloadProgress, ProgressEvent{Progress: progress, URL: url}); err != nil {
		log.L().Debug().Err(err).Str(log.FieldURL, url).Msg("progress event not published")
	}
}
