// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package quality turns the raw format list reported by the extractor into
// the ranked, one-row-per-resolution list offered to clients.
package quality

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	// TargetExt is the only container offered to clients.
	TargetExt = "mp4"
	// ContainerLabel is the display name of TargetExt.
	ContainerLabel = "MP4"
	// UnknownLabel is used when a format carries no height.
	UnknownLabel = "Unknown"
	// UnknownSize is shown when no size is known for a format.
	UnknownSize = "Unknown"

	labelSized   = "Good Download"
	labelUnsized = "High Download"

	bytesPerMB = 1024 * 1024
)

// NoQualitiesMessage is carried by the sentinel returned when nothing survives.
const NoQualitiesMessage = "No available video formats."

// RawFormat is one entry of the extractor's format list.
type RawFormat struct {
	FormatID string
	Ext      string
	VCodec   string
	// Height is zero when the extractor did not report one.
	Height int
	// Filesize is the exact size in bytes, zero when unknown.
	Filesize int64
	// FilesizeApprox is used when Filesize is zero.
	FilesizeApprox int64
}

// Option is one downloadable quality.
type Option struct {
	Quality  string `json:"quality,omitempty"`
	Format   string `json:"format,omitempty"`
	Size     string `json:"size,omitempty"`
	FormatID string `json:"format_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IsSentinel reports whether o is the "no available qualities" marker.
func (o Option) IsSentinel() bool {
	return o.Error != "" && o.FormatID == ""
}

// NoQualities returns the single-element result used when nothing survives.
func NoQualities() []Option {
	return []Option{{Error: NoQualitiesMessage}}
}

type group struct {
	label     string
	largestID string
	largest   int64
	unknownID string
}

// Aggregate filters, deduplicates and ranks raw formats. At most one option is
// emitted per quality label: the largest known size wins (first seen on ties),
// and a size-less format is only kept when no sized format shares its label.
// The result is never empty; see NoQualities.
func Aggregate(formats []RawFormat) []Option {
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, f := range formats {
		if !isVideo(f) {
			continue
		}
		label := Label(f.Height)
		g, ok := groups[label]
		if !ok {
			g = &group{label: label}
			groups[label] = g
			order = append(order, label)
		}

		size := f.Filesize
		if size <= 0 {
			size = f.FilesizeApprox
		}
		if size <= 0 {
			if g.unknownID == "" {
				g.unknownID = f.FormatID
			}
			continue
		}
		if size > g.largest {
			g.largest = size
			g.largestID = f.FormatID
		}
	}

	out := make([]Option, 0, len(order))
	for _, label := range order {
		g := groups[label]
		switch {
		case g.largestID != "":
			out = append(out, Option{
				Quality:  label,
				Format:   ContainerLabel,
				Size:     FormatSize(g.largest),
				FormatID: g.largestID,
				Label:    labelSized,
			})
		case g.unknownID != "":
			out = append(out, Option{
				Quality:  label,
				Format:   ContainerLabel,
				Size:     UnknownSize,
				FormatID: g.unknownID,
				Label:    labelUnsized,
			})
		}
	}

	if len(out) == 0 {
		return NoQualities()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return Rank(out[i].Quality) < Rank(out[j].Quality)
	})
	return out
}

func isVideo(f RawFormat) bool {
	if !strings.EqualFold(f.Ext, TargetExt) {
		return false
	}
	vcodec := strings.TrimSpace(f.VCodec)
	return vcodec != "" && vcodec != "none"
}

// Label derives the quality label for a height ("720p" or "Unknown").
func Label(height int) string {
	if height <= 0 {
		return UnknownLabel
	}
	return strconv.Itoa(height) + "p"
}

// Rank is the numeric sort key of a label; non-numeric labels rank as zero.
func Rank(label string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(label, "p"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FormatSize renders bytes as megabytes rounded to two decimals ("12.5 MB").
func FormatSize(bytes int64) string {
	mb := math.Round(float64(bytes)/bytesPerMB*100) / 100
	return strconv.FormatFloat(mb, 'f', -1, 64) + " MB"
}
