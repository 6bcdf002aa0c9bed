// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workspaceSweptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_workspace_swept_total",
		Help: "Workspace entries removed by the sweep, by kind",
	}, []string{"kind"}) // kind=file|slot

	workspaceSweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidgrab_workspace_sweep_errors_total",
		Help: "Workspace entries the sweep failed to remove",
	})

	workspaceActiveSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidgrab_workspace_active_slots",
		Help: "Workspace slots currently held by downloads",
	})
)

// AddWorkspaceSwept records removed sweep entries.
func AddWorkspaceSwept(kind string, n int) {
	if n <= 0 {
		return
	}
	workspaceSweptTotal.WithLabelValues(orUnknown(kind)).Add(float64(n))
}

// AddWorkspaceSweepErrors records entries that could not be removed.
func AddWorkspaceSweepErrors(n int) {
	if n <= 0 {
		return
	}
	workspaceSweepErrorsTotal.Add(float64(n))
}

// SetWorkspaceActiveSlots publishes the number of held slots.
func SetWorkspaceActiveSlots(n int) {
	workspaceActiveSlots.Set(float64(n))
}
