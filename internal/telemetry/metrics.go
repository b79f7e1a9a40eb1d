package telemetry

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the pipeline.
//
// METRIC NAMING: lifecycle_telemetry_{name}_{unit}
//
// All Record methods are nil-safe, so a pipeline built without metrics
// pays nothing.
type Metrics struct {
	EventsQueued     prometheus.Counter
	EventsDropped    *prometheus.CounterVec // reason
	BatchesSent      *prometheus.CounterVec // kind
	SendFailures     prometheus.Counter
	PendingEvents    prometheus.Gauge
	SummariesEmitted prometheus.Counter
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "events_queued_total",
			Help:      "Step events accepted into the pending queue",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "events_dropped_total",
			Help:      "Step events and summaries dropped before delivery",
		}, []string{"reason"}),
		BatchesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "batches_sent_total",
			Help:      "Batches handed to the sink",
		}, []string{"kind"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "send_failures_total",
			Help:      "Batches the sink rejected",
		}),
		PendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "pending_events",
			Help:      "Step events waiting for the next flush",
		}),
		SummariesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifecycle",
			Subsystem: "telemetry",
			Name:      "summaries_emitted_total",
			Help:      "Attempt summaries emitted",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EventsQueued,
			m.EventsDropped,
			m.BatchesSent,
			m.SendFailures,
			m.PendingEvents,
			m.SummariesEmitted,
		)
	}
	return m
}

func (m *Metrics) recordQueued(pending int) {
	if m == nil {
		return
	}
	m.EventsQueued.Inc()
	m.PendingEvents.Set(float64(pending))
}

func (m *Metrics) recordDropped(reason DropReason) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) recordSent(kind string, pending int) {
	if m == nil {
		return
	}
	m.BatchesSent.WithLabelValues(kind).Inc()
	m.PendingEvents.Set(float64(pending))
	if kind == KindSummary {
		m.SummariesEmitted.Inc()
	}
}

func (m *Metrics) recordSendFailure(pending int) {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
	m.PendingEvents.Set(float64(pending))
}

// GatherValues flattens every counter and gauge in g into a map keyed by
// series, e.g. lifecycle_telemetry_batches_sent_total{kind="steps"}.
func GatherValues(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, l := range labels {
					pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
				}
				key += "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}
