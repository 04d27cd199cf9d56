// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics holds the Prometheus collectors exposed by the
// supervisor: classifier throughput, ring-buffer drops, the active rule
// count, and event-stream subscriber count. HTTP exposition belongs to the
// external HTTP controller; this package defines the collectors, registers
// them with the Registerer passed to New, and updates them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the supervisor updates.
type Metrics struct {
	PacketsProcessed prometheus.Counter
	PacketsDropped   prometheus.Counter
	PacketsPassed    prometheus.Counter

	RingEventsObserved prometheus.Counter
	RingEventsDropped  prometheus.Counter

	RulesActive      prometheus.Gauge
	RuleTableWrites  *prometheus.CounterVec
	EventSubscribers prometheus.Gauge

	DurableWriteErrors prometheus.Counter
}

// New creates and registers the supervisor's metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_classifier_packets_processed_total",
			Help: "Total number of packets observed by the XDP classifier.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_classifier_packets_dropped_total",
			Help: "Total number of packets that received a DROP verdict.",
		}),
		PacketsPassed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_classifier_packets_passed_total",
			Help: "Total number of packets that received a PASS verdict.",
		}),
		RingEventsObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_ingester_ring_events_total",
			Help: "Total number of events drained from the kernel ring buffer.",
		}),
		RingEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_ingester_ring_events_dropped_total",
			Help: "Total number of failed reads from the kernel ring buffer in the ingester.",
		}),
		RulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adamfw_ruletable_active_rules",
			Help: "Number of initialized rule-table slots.",
		}),
		RuleTableWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adamfw_ruletable_writes_total",
			Help: "Total number of rule-table mutations, by operation.",
		}, []string{"operation"}),
		EventSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adamfw_ipc_event_subscribers",
			Help: "Number of clients currently subscribed to the event socket.",
		}),
		DurableWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adamfw_store_write_errors_total",
			Help: "Total number of durable-store write failures.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PacketsProcessed, m.PacketsDropped, m.PacketsPassed,
			m.RingEventsObserved, m.RingEventsDropped,
			m.RulesActive, m.RuleTableWrites, m.EventSubscribers,
			m.DurableWriteErrors,
		)
	}

	return m
}
