package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// eventMetrics tracks raw publish volume on the treasury event bus,
// segmented by topic.
type eventMetrics struct {
	published *prometheus.CounterVec
	consumers *prometheus.GaugeVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured treasury events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of events published on the treasury event bus, segmented by topic.",
			}, []string{"topic"}),
			consumers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "treasury",
				Subsystem: "events",
				Name:      "stream_subscribers",
				Help:      "Current count of live websocket subscribers per topic.",
			}, []string{"topic"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.consumers)
	})
	return eventRegistry
}

// RecordPublish increments the publish counter for the supplied event topic.
func (m *eventMetrics) RecordPublish(topic string) {
	if m == nil {
		return
	}
	normalized := normalizeTopic(topic)
	m.published.WithLabelValues(normalized).Inc()
}

// SetSubscribers records the current subscriber count for a topic's stream.
func (m *eventMetrics) SetSubscribers(topic string, count int) {
	if m == nil {
		return
	}
	m.consumers.WithLabelValues(normalizeTopic(topic)).Set(float64(count))
}

func normalizeTopic(topic string) string {
	normalized := strings.TrimSpace(strings.ToLower(topic))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
