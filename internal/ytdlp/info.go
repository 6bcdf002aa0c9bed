// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/vidgrab/internal/quality"
)

// Info is the subset of the yt-dlp info document the service consumes.
type Info struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Thumbnail  string   `json:"thumbnail"`
	WebpageURL string   `json:"webpage_url"`
	Uploader   string   `json:"uploader"`
	Duration   float64  `json:"duration"`
	Formats    []Format `json:"formats"`
}

// Format is one entry of Info.Formats. Sizes are floats because some
// extractors report estimated sizes with a fractional part.
type Format struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Height         int     `json:"height"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// RawFormats converts the format list for quality aggregation.
func (i *Info) RawFormats() []quality.RawFormat {
	out := make([]quality.RawFormat, 0, len(i.Formats))
	for _, f := range i.Formats {
		out = append(out, quality.RawFormat{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			VCodec:         f.VCodec,
			Height:         f.Height,
			Filesize:       int64(f.Filesize),
			FilesizeApprox: int64(f.FilesizeApprox),
		})
	}
	return out
}

var errEmptyInfo = errors.New("yt-dlp returned an empty info document")

// ParseInfo decodes the output of "yt-dlp -J".
func ParseInfo(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, errEmptyInfo
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp info: %w", err)
	}
	return &info, nil
}
