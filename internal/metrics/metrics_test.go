// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, vec.WithLabelValues(labels...))
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func TestObserveDownload_NormalizesOutcome(t *testing.T) {
	before := getCounterVecValue(t, downloadsTotal, "unknown")
	ObserveDownload("something_else", time.Second)
	assert.Equal(t, before+1, getCounterVecValue(t, downloadsTotal, "unknown"))

	before = getCounterVecValue(t, downloadsTotal, "conflict")
	ObserveDownload(" Conflict ", 0)
	assert.Equal(t, before+1, getCounterVecValue(t, downloadsTotal, "conflict"))
}

func TestDownloadsInFlight(t *testing.T) {
	before := getGaugeValue(t, downloadsInFlight)
	IncDownloadsInFlight()
	assert.Equal(t, before+1, getGaugeValue(t, downloadsInFlight))
	DecDownloadsInFlight()
	assert.Equal(t, before, getGaugeValue(t, downloadsInFlight))
}

func TestIncBusDrop_DefaultsReason(t *testing.T) {
	before := getCounterVecValue(t, busDroppedTotal, "download_progress", "full")
	IncBusDrop("download_progress")
	assert.Equal(t, before+1, getCounterVecValue(t, busDroppedTotal, "download_progress", "full"))

	before = getCounterVecValue(t, busDroppedTotal, "unknown", "unknown")
	IncBusDropReason("", "")
	assert.Equal(t, before+1, getCounterVecValue(t, busDroppedTotal, "unknown", "unknown"))
}

func TestWorkspaceCounters_IgnoreNonPositive(t *testing.T) {
	before := getCounterVecValue(t, workspaceSweptTotal, "file")
	AddWorkspaceSwept("file", 0)
	AddWorkspaceSwept("file", 3)
	assert.Equal(t, before+3, getCounterVecValue(t, workspaceSweptTotal, "file"))

	beforeErr := getCounterValue(t, workspaceSweepErrorsTotal)
	AddWorkspaceSweepErrors(-1)
	AddWorkspaceSweepErrors(2)
	assert.Equal(t, beforeErr+2, getCounterValue(t, workspaceSweepErrorsTotal))
}

func TestIncDetailsCache_UnknownResult(t *testing.T) {
	before := getCounterVecValue(t, detailsCacheTotal, "unknown")
	IncDetailsCache("stale")
	assert.Equal(t, before+1, getCounterVecValue(t, detailsCacheTotal, "unknown"))
}
