// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for download and details requests.
const (
	OutcomeSuccess = "success"
)

var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_downloads_total",
		Help: "Total number of download requests by outcome (success or error kind)",
	}, []string{"outcome"})

	downloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidgrab_download_duration_seconds",
		Help:    "Wall time of download requests that reached the external tool",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})

	downloadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidgrab_downloads_in_flight",
		Help: "Current number of downloads holding a URL lock",
	})

	detailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_details_total",
		Help: "Total number of metadata lookups by outcome",
	}, []string{"outcome"})

	detailsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_details_cache_total",
		Help: "Metadata cache lookups by result",
	}, []string{"result"}) // result=hit|miss|error

	lockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidgrab_lock_conflicts_total",
		Help: "Total number of downloads rejected because the URL was already in progress",
	})

	toolExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_tool_exits_total",
		Help: "External tool process exits by mode and result",
	}, []string{"mode", "result"}) // mode=extract|download, result=ok|error|canceled
)

var knownOutcomes = map[string]struct{}{
	OutcomeSuccess:       {},
	"validation":         {},
	"conflict":           {},
	"dependency_missing": {},
	"auth_required":      {},
	"rate_limited":       {},
	"tool_failure":       {},
	"artifact_not_found": {},
}

// normalizeOutcome caps label cardinality to the known outcome set.
func normalizeOutcome(outcome string) string {
	o := strings.ToLower(strings.TrimSpace(outcome))
	if _, ok := knownOutcomes[o]; ok {
		return o
	}
	return "unknown"
}

// ObserveDownload records a finished download request.
func ObserveDownload(outcome string, d time.Duration) {
	o := normalizeOutcome(outcome)
	downloadsTotal.WithLabelValues(o).Inc()
	if d > 0 {
		downloadDuration.WithLabelValues(o).Observe(d.Seconds())
	}
}

// IncDownloadsInFlight marks a download as holding its lock.
func IncDownloadsInFlight() { downloadsInFlight.Inc() }

// DecDownloadsInFlight releases the in-flight mark.
func DecDownloadsInFlight() { downloadsInFlight.Dec() }

// IncDetails records a finished metadata lookup.
func IncDetails(outcome string) {
	detailsTotal.WithLabelValues(normalizeOutcome(outcome)).Inc()
}

// IncDetailsCache records a metadata cache lookup result.
func IncDetailsCache(result string) {
	switch result {
	case "hit", "miss", "error":
	default:
		result = "unknown"
	}
	detailsCacheTotal.WithLabelValues(result).Inc()
}

// IncLockConflict records a rejected concurrent download.
func IncLockConflict() { lockConflictsTotal.Inc() }

// IncToolExit records an external tool exit.
func IncToolExit(mode, result string) {
	toolExitsTotal.WithLabelValues(orUnknown(mode), orUnknown(result)).Inc()
}
