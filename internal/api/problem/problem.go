// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/vidgrab/internal/log"
)

const (
	// HeaderRequestID carries the request correlation id.
	HeaderRequestID = "X-Request-ID"
	// JSONKeyRequestID is the problem member holding the request id.
	JSONKeyRequestID = "requestId"
	// ContentType is the media type of problem responses.
	ContentType = "application/problem+json"
)

var reserved = map[string]bool{
	"type": true, "title": true, "status": true, "detail": true,
	"instance": true, "code": true, JSONKeyRequestID: true,
}

// Problem describes one error response.
type Problem struct {
	// Type is a canonical machine identifier (e.g. "download/conflict").
	Type string
	// Title is a short human-readable label.
	Title string
	// Status is the HTTP status code.
	Status int
	// Code is a stable machine-readable short code (e.g. "CONFLICT").
	Code string
	// Detail explains this occurrence.
	Detail string
	// Extra members are added at top level; reserved names are ignored.
	Extra map[string]any
}

// Write renders p. The detail is also exposed as "error" for clients that
// only read that member.
func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	reqID := ""
	instance := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
		instance = r.URL.EscapedPath()
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
		"code":   p.Code,
		"error":  p.Detail,
	}
	if reqID != "" {
		res[JSONKeyRequestID] = reqID
	}
	if p.Detail != "" {
		res["detail"] = p.Detail
	} else {
		res["error"] = p.Title
	}
	if instance != "" {
		res["instance"] = instance
	}
	for k, v := range p.Extra {
		if reserved[k] || k == "error" {
			log.L().Warn().Str("key", k).Str("problem_type", p.Type).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	if reqID != "" {
		w.Header().Set(HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().Err(err).Str("type", p.Type).Int("status", p.Status).Msg("failed to encode problem response")
	}
}
