// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ytdlp

import (
	"strconv"
	"strings"
)

// ProgressFunc receives download progress in percent (0..100).
type ProgressFunc func(percent float64)

// parseProgressLine extracts the percentage from a progress line produced by
// the progress template. ok is false for any other output.
func parseProgressLine(line string) (percent float64, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), progressPrefix)
	if !found {
		return 0, false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case v < 0:
		v = 0
	case v > 100:
		v = 100
	}
	return v, true
}

// FormatPercent renders a percentage the way progress events carry it ("42.0%").
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}
