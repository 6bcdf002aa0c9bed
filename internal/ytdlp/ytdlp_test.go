// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestDownloadArgs(t *testing.T) {
	c := New(Config{
		Retries:         10,
		FragmentRetries: 7,
		SocketTimeout:   30 * time.Second,
		CookiesBrowser:  "chrome",
		FFmpegBin:       "/usr/local/bin/ffmpeg",
	})
	args := c.downloadArgs(DownloadRequest{
		URL:            "https://example.com/watch?v=1",
		FormatSpec:     "137+bestaudio",
		OutputTemplate: "/tmp/ws/dl-1/title_1080p_x.%(ext)s",
		UseCookies:     true,
	})

	v, ok := argValue(args, "-f")
	require.True(t, ok)
	assert.Equal(t, "137+bestaudio", v)
	v, _ = argValue(args, "-o")
	assert.Equal(t, "/tmp/ws/dl-1/title_1080p_x.%(ext)s", v)
	v, _ = argValue(args, "--merge-output-format")
	assert.Equal(t, "mp4", v)
	v, _ = argValue(args, "--remux-video")
	assert.Equal(t, "mp4", v)
	v, _ = argValue(args, "--retries")
	assert.Equal(t, "10", v)
	v, _ = argValue(args, "--fragment-retries")
	assert.Equal(t, "7", v)
	v, _ = argValue(args, "--socket-timeout")
	assert.Equal(t, "30", v)
	v, _ = argValue(args, "--cookies-from-browser")
	assert.Equal(t, "chrome", v)
	v, _ = argValue(args, "--ffmpeg-location")
	assert.Equal(t, "/usr/local/bin/ffmpeg", v)

	assert.Contains(t, args, "--continue")
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "--progress")
	assert.Equal(t, []string{"--", "https://example.com/watch?v=1"}, args[len(args)-2:])
}

func TestDownloadArgsWithoutCookiesOrPath(t *testing.T) {
	c := New(Config{CookiesBrowser: "firefox", FFmpegBin: "ffmpeg", PostProcess: PostProcessRecode, MergeFormat: "mkv"})
	args := c.downloadArgs(DownloadRequest{URL: "u", FormatSpec: "bestaudio", OutputTemplate: "o"})

	assert.NotContains(t, args, "--cookies-from-browser")
	assert.NotContains(t, args, "--ffmpeg-location")
	assert.NotContains(t, args, "--remux-video")
	v, ok := argValue(args, "--recode-video")
	require.True(t, ok)
	assert.Equal(t, "mkv", v)
}

func TestExtractArgs(t *testing.T) {
	c := New(Config{CookiesBrowser: "chrome"})
	args := c.extractArgs("https://example.com/v", true)
	assert.Equal(t, "-J", args[0])
	assert.Contains(t, args, "--skip-download")
	assert.Contains(t, args, "--cookies-from-browser")

	args = c.extractArgs("https://example.com/v", false)
	assert.NotContains(t, args, "--cookies-from-browser")
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"vidgrab-progress  42.3%", 42.3, true},
		{"vidgrab-progress 100.0%", 100, true},
		{"  vidgrab-progress   0.0%  ", 0, true},
		{"vidgrab-progress 120%", 100, true},
		{"vidgrab-progress N/A", 0, false},
		{"/tmp/ws/dl-1/file.mp4", 0, false},
		{"[download]  42.3% of 10MiB", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProgressLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.InDelta(t, tt.want, got, 0.001, tt.line)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "42.0%", FormatPercent(42))
	assert.Equal(t, "100.0%", FormatPercent(100))
	assert.Equal(t, "3.5%", FormatPercent(3.46))
}

func TestParseInfo(t *testing.T) {
	doc := `{
		"id": "abc",
		"title": "A Title",
		"thumbnail": "https://i.example.com/abc.jpg",
		"formats": [
			{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a", "filesize": 1024},
			{"format_id": "137", "ext": "mp4", "vcodec": "avc1", "height": 1080, "filesize": null, "filesize_approx": 2097152.5},
			{"format_id": "18", "ext": "mp4", "vcodec": "avc1", "height": null}
		]
	}`
	info, err := ParseInfo([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "A Title", info.Title)
	require.Len(t, info.Formats, 3)

	raw := info.RawFormats()
	assert.Equal(t, int64(2097152), raw[1].FilesizeApprox)
	assert.Equal(t, 0, raw[2].Height)
	assert.Equal(t, 1080, info.Formats[1].Height)

	_, err = ParseInfo(nil)
	assert.Error(t, err)
	_, err = ParseInfo([]byte("not json"))
	assert.Error(t, err)
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tb := newTailBuffer(3)
	_, _ = tb.Write([]byte("one\ntwo\nthree\nfour\nfi"))
	_, _ = tb.Write([]byte("ve"))
	assert.Equal(t, "two\nthree\nfour\nfive", tb.String())
	// String must not mutate the retained lines.
	assert.Equal(t, "two\nthree\nfour\nfive", tb.String())
}

func TestExitErrorMessage(t *testing.T) {
	e := &ExitError{
		Mode:     modeDownload,
		ExitCode: 1,
		Stderr:   "WARNING: something\nERROR: [youtube] abc: Sign in to confirm your age\nfoo",
		Err:      errors.New("exit status 1"),
	}
	assert.Equal(t, "ERROR: [youtube] abc: Sign in to confirm your age", e.Error())

	e = &ExitError{Mode: modeExtract, ExitCode: 2, Err: &exec.ExitError{}}
	assert.Equal(t, "yt-dlp extract exited with code 2", e.Error())

	e = &ExitError{Mode: modeExtract, ExitCode: -1, Err: errors.New("boom")}
	assert.True(t, strings.Contains(e.Error(), "boom"))
}
