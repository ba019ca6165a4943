package event

import "github.com/prometheus/client_golang/prometheus"

type busMetrics struct {
	published *prometheus.CounterVec
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func newBusMetrics(registry prometheus.Registerer) *busMetrics {
	if registry == nil {
		return nil
	}

	m := &busMetrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ember_events_published_total",
				Help: "Events published, by event type",
			},
			[]string{"event_type"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ember_events_delivered_total",
				Help: "Events delivered to subscribers, by event type",
			},
			[]string{"event_type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ember_events_dropped_total",
				Help: "Events dropped because a queue or subscriber buffer was full",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(m.published, m.delivered, m.dropped)
	return m
}

func (m *busMetrics) IncrementPublished(eventType string) {
	if m != nil {
		m.published.WithLabelValues(eventType).Inc()
	}
}

func (m *busMetrics) IncrementDelivered(eventType string) {
	if m != nil {
		m.delivered.WithLabelValues(eventType).Inc()
	}
}

func (m *busMetrics) IncrementDropped(eventType string) {
	if m != nil {
		m.dropped.WithLabelValues(eventType).Inc()
	}
}
