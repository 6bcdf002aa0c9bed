// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"path/filepath"
	"strconv"
	"strings"
)

// progressPrefix marks progress lines on stdout so they can be told apart
// from the final path printed after the move.
const progressPrefix = "vidgrab-progress"

// Post-processing modes for the merged artifact.
const (
	PostProcessRemux  = "remux"
	PostProcessRecode = "recode"
)

// DownloadRequest is a single download invocation.
type DownloadRequest struct {
	URL            string
	FormatSpec     string
	OutputTemplate string
	UseCookies     bool
}

func (c *Client) commonArgs(useCookies bool) []string {
	args := []string{"--no-playlist", "--no-colors", "--ignore-config"}
	if c.cfg.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(c.cfg.SocketTimeout.Seconds())))
	}
	if useCookies && c.cfg.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", c.cfg.CookiesBrowser)
	}
	return args
}

func (c *Client) extractArgs(url string, useCookies bool) []string {
	args := []string{"-J", "--skip-download"}
	args = append(args, c.commonArgs(useCookies)...)
	return append(args, "--", url)
}

func (c *Client) downloadArgs(req DownloadRequest) []string {
	merge := c.cfg.MergeFormat
	if merge == "" {
		merge = "mp4"
	}

	args := []string{
		"-f", req.FormatSpec,
		"-o", req.OutputTemplate,
		"--merge-output-format", merge,
	}
	if strings.EqualFold(c.cfg.PostProcess, PostProcessRecode) {
		args = append(args, "--recode-video", merge)
	} else {
		args = append(args, "--remux-video", merge)
	}
	// A bare name is left to yt-dlp's own PATH lookup.
	if strings.ContainsRune(c.cfg.FFmpegBin, filepath.Separator) {
		args = append(args, "--ffmpeg-location", c.cfg.FFmpegBin)
	}

	args = append(args,
		"--retries", strconv.Itoa(c.cfg.Retries),
		"--fragment-retries", strconv.Itoa(c.cfg.FragmentRetries),
		"--continue",
		"--newline",
		// --print implies --quiet; --progress keeps the progress lines.
		"--progress",
		"--progress-template", "download:"+progressPrefix+" %(progress._percent_str)s",
		"--print", "after_move:filepath",
		"--no-simulate",
	)
	args = append(args, c.commonArgs(req.UseCookies)...)
	return append(args, "--", req.URL)
}
