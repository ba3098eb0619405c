package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEventIncrementsCounterAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)

	sink.ObserveEvent("ai-response", "room-1")
	sink.ObserveEvent("ai-response", "room-1")
	sink.ObserveEvent("ai-error", "room-1")

	families, err := reg.Gather()
	require.NoError(t, err)

	events := findFamily(families, "swarmchat_orchestrator_events_total")
	require.NotNil(t, events)

	var aiResponseCount float64
	for _, m := range events.GetMetric() {
		if labelValue(m, "event_type") == "ai-response" {
			aiResponseCount = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), aiResponseCount)
}

func TestObserveErrorIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)

	sink.ObserveError("broker-error")
	sink.ObserveError("broker-error")

	families, err := reg.Gather()
	require.NoError(t, err)

	errors := findFamily(families, "swarmchat_orchestrator_errors_total")
	require.NotNil(t, errors)
	require.Len(t, errors.GetMetric(), 1)
	assert.Equal(t, float64(2), errors.GetMetric()[0].GetCounter().GetValue())
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}
