// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ManuGH/vidgrab/internal/download"
	"github.com/ManuGH/vidgrab/internal/log"
)

type detailsRequest struct {
	URL        string `json:"url"`
	UseCookies bool   `json:"use_cookies,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a single JSON object of at most maxBodyBytes.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &download.Error{Kind: download.KindValidation, Message: "Request body too large", Err: err}
		}
		return &download.Error{Kind: download.KindValidation, Message: "Invalid JSON body", Err: err}
	}
	return nil
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": HomeMessage})
}

func (s *Server) handleVideoDetails(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	details, err := s.deps.Downloader.FetchDetails(r.Context(), req.URL, req.UseCookies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req download.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.detach(r)
	defer cancel()

	res, err := s.deps.Downloader.Download(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().Err(cerr).
				Str(log.FieldPath, res.Path).Msg("failed to release download slot")
		}
	}()

	s.serveArtifact(w, r, res)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, res *download.Result) {
	// #nosec G304 -- path is confined to the workspace by the orchestrator
	f, err := os.Open(res.Path)
	if err != nil {
		writeError(w, r, &download.Error{Kind: download.KindArtifactNotFound, Message: "File not found after download.", Err: err})
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, &download.Error{Kind: download.KindArtifactNotFound, Message: "File not found after download.", Err: err})
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(res.Name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", contentDisposition(res.Name))
	w.Header().Set("X-Download-Message", res.Message)

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "download.serve").
		Str(log.FieldFinalPath, res.Path).
		Int64("size", info.Size()).
		Msg("serving download")

	http.ServeContent(w, r, res.Name, info.ModTime(), f)
}

// contentDisposition builds an attachment header; non-ASCII names use the
// RFC 5987 encoding.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return fmt.Sprintf("attachment; filename=%q", "download"+filepath.Ext(name))
}
