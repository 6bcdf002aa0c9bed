// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldJobID         = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Download fields
	FieldURL         = "url"
	FieldVideoFormat = "video_format"
	FieldAudioFormat = "audio_format"
	FieldFormatSpec  = "format_spec"
	FieldErrorKind   = "error_kind"
	FieldProgress    = "progress"

	// Path fields
	FieldPath      = "path"
	FieldFinalPath = "final_path"
	FieldSlot      = "slot"
)
