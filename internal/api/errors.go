// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/vidgrab/internal/api/middleware"
	"github.com/ManuGH/vidgrab/internal/api/problem"
	"github.com/ManuGH/vidgrab/internal/download"
	"github.com/ManuGH/vidgrab/internal/log"
)

// rateLimitedRetryAfter is the back-off suggested when the source throttles us.
const rateLimitedRetryAfter = 60

type errorSpec struct {
	status int
	title  string
}

var errorSpecs = map[download.Kind]errorSpec{
	download.KindValidation:        {http.StatusBadRequest, "Bad Request"},
	download.KindArtifactNotFound:  {http.StatusNotFound, "Not Found"},
	download.KindConflict:          {http.StatusTooManyRequests, "Download In Progress"},
	download.KindRateLimited:       {http.StatusTooManyRequests, "Rate Limited By Source"},
	download.KindAuthRequired:      {http.StatusForbidden, "Authentication Required"},
	download.KindDependencyMissing: {http.StatusInternalServerError, "Dependency Missing"},
	download.KindToolFailure:       {http.StatusInternalServerError, "Download Tool Failed"},
}

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(kind download.Kind) int {
	if spec, ok := errorSpecs[kind]; ok {
		return spec.status
	}
	return http.StatusInternalServerError
}

// writeError renders a classified error as problem+json.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := download.KindOf(err)
	spec, ok := errorSpecs[kind]
	if !ok {
		kind = download.KindToolFailure
		spec = errorSpecs[kind]
	}

	detail := err.Error()
	var de *download.Error
	if errors.As(err, &de) && de.Message != "" && kind != download.KindToolFailure {
		detail = de.Message
	}

	if kind == download.KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimitedRetryAfter))
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	evt := logger.Warn()
	if spec.status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	traceID, _ := middleware.TraceIDs(r)
	evt.Err(err).
		Str(log.FieldEvent, "request.failed").
		Str(log.FieldErrorKind, string(kind)).
		Str("trace_id", traceID).
		Int("status", spec.status).
		Msg("request failed")

	problem.Write(w, r, problem.Problem{
		Type:   "download/" + string(kind),
		Title:  spec.title,
		Status: spec.status,
		Code:   strings.ToUpper(string(kind)),
		Detail: detail,
		Extra:  map[string]any{"kind": string(kind)},
	})
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, code, title string) {
	problem.Write(w, r, problem.Problem{
		Type:   "system/" + strings.ToLower(code),
		Title:  title,
		Status: status,
		Code:   code,
	})
}
