// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"errors"
	"strings"
)

// Kind classifies a failed request.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindDependencyMissing Kind = "dependency_missing"
	KindAuthRequired      Kind = "auth_required"
	KindRateLimited       Kind = "rate_limited"
	KindToolFailure       Kind = "tool_failure"
	KindArtifactNotFound  Kind = "artifact_not_found"
)

// Error is the only error type returned by the Orchestrator.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &download.Error{Kind: download.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the classification of err. Unclassified errors are tool failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindToolFailure
}

// Classify maps an external tool failure message onto a Kind.
func Classify(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "cookies"),
		strings.Contains(m, "login"),
		strings.Contains(m, "sign in"):
		return KindAuthRequired
	case strings.Contains(m, "429"),
		strings.Contains(m, "too many requests"):
		return KindRateLimited
	default:
		return KindToolFailure
	}
}

// toolError wraps an extractor failure with its classification.
func toolError(op string, err error) *Error {
	kind := Classify(err.Error())
	var msg string
	switch kind {
	case KindAuthRequired:
		msg = op + " requires authentication; retry with browser cookies enabled"
	case KindRateLimited:
		msg = op + " was rate limited by the source; retry later"
	default:
		msg = op + " failed"
	}
	return newError(kind, msg, err)
}
