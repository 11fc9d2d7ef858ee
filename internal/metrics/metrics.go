// Package metrics exposes Prometheus instruments for event handling.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsletter"

// Rejection reasons.
const (
	ReasonValidation   = "validation"
	ReasonUnauthorized = "unauthorized"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	eventsReceived *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	outbound       *prometheus.CounterVec
	subscribers    prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound events routed to a handler, by event name.",
		}, []string{"event"}),
		eventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Inbound events skipped because of a validation or authorization failure.",
		}, []string{"event", "reason"}),
		outbound: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_events_total",
			Help:      "Outbound send_newsletter events, by capture status.",
		}, []string{"status"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Length of the subscriber list after the last read or write.",
		}),
	}
}

// EventReceived counts an inbound event with a recognized name.
func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(event).Inc()
}

// EventRejected counts an inbound event that was skipped.
func (m *Metrics) EventRejected(event, reason string) {
	if m == nil {
		return
	}
	m.eventsRejected.WithLabelValues(event, reason).Inc()
}

// Outbound counts an outbound event by status.
func (m *Metrics) Outbound(status string) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(status).Inc()
}

// SetSubscribers records the current list length.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ReceivedCounter returns the received counter for event.
func (m *Metrics) ReceivedCounter(event string) prometheus.Counter {
	return m.eventsReceived.WithLabelValues(event)
}

// RejectedCounter returns the rejected counter for event and reason.
func (m *Metrics) RejectedCounter(event, reason string) prometheus.Counter {
	return m.eventsRejected.WithLabelValues(event, reason)
}

// OutboundCounter returns the outbound counter for status.
func (m *Metrics) OutboundCounter(status string) prometheus.Counter {
	return m.outbound.WithLabelValues(status)
}

// SubscribersGauge returns the subscriber gauge.
func (m *Metrics) SubscribersGauge() prometheus.Gauge {
	return m.subscribers
}
