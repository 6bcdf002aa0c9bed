// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_bus_published_total",
		Help: "Total number of events accepted by the in-memory bus",
	}, []string{"topic"})

	busDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_bus_dropped_total",
		Help: "Total number of in-memory bus event drops by topic and reason",
	}, []string{"topic", "reason"})

	busSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidgrab_bus_subscribers",
		Help: "Current number of bus subscribers per topic",
	}, []string{"topic"})
)

// IncBusPublished records an event handed to the bus.
func IncBusPublished(topic string) {
	busPublishedTotal.WithLabelValues(orUnknown(topic)).Inc()
}

// IncBusDrop records an event dropped because a subscriber buffer was full.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus event with a concrete reason.
func IncBusDropReason(topic, reason string) {
	busDroppedTotal.WithLabelValues(orUnknown(topic), orUnknown(reason)).Inc()
}

// AddBusSubscribers adjusts the subscriber gauge by delta.
func AddBusSubscribers(topic string, delta int) {
	busSubscribers.WithLabelValues(orUnknown(topic)).Add(float64(delta))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
