// Package metrics provides a Prometheus-backed event sink for orchestrator
// activity, in the spirit of the teacher's webhook metrics registry
// (plugin/chat_apps/metrics) but backed by real counter/gauge types
// instead of a hand-rolled snapshot struct.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink counts orchestrator events by type and room, and satisfies
// core/orchestrator.MetricsSink by duck typing.
type Sink struct {
	events   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	lastSeen *prometheus.GaugeVec
}

// New creates a Sink and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer for a process-wide default.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarmchat",
			Subsystem: "orchestrator",
			Name:      "events_total",
			Help:      "Total orchestrator events by type and room.",
		}, []string{"event_type", "room_id"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarmchat",
			Subsystem: "orchestrator",
			Name:      "errors_total",
			Help:      "Total orchestrator-observed errors by source.",
		}, []string{"source"}),
		lastSeen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "swarmchat",
			Subsystem: "orchestrator",
			Name:      "last_event_unixtime",
			Help:      "Unix timestamp of the last event observed, by room.",
		}, []string{"room_id"}),
	}
	reg.MustRegister(s.events, s.errors, s.lastSeen)
	return s
}

// ObserveEvent records one orchestrator event. Satisfies
// core/orchestrator.MetricsSink.
func (s *Sink) ObserveEvent(eventType, roomID string) {
	s.events.WithLabelValues(eventType, roomID).Inc()
	s.lastSeen.WithLabelValues(roomID).Set(float64(time.Now().Unix()))
}

// ObserveError records an error attributed to source (e.g. "broker",
// "capability", "persistence"). Not part of the orchestrator.MetricsSink
// contract, so the orchestrator never calls it; nothing else in this
// repository calls it either.
func (s *Sink) ObserveError(source string) {
	s.errors.WithLabelValues(source).Inc()
}
