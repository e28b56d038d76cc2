// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maintenance"

var (
	// RequestsSubmitted counts accepted submissions by assigned priority.
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_submitted_total",
		Help:      "Total number of maintenance requests submitted.",
	}, []string{"priority"})

	// Transitions counts lifecycle transitions by target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of request status transitions.",
	}, []string{"status"})

	// OpenRequests tracks requests registered with the escalation scheduler.
	OpenRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_requests",
		Help:      "Current number of open requests tracked for escalation.",
	})

	// EscalationsFired counts escalation levels fired.
	EscalationsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_fired_total",
		Help:      "Total number of escalation levels fired.",
	}, []string{"priority"})

	// Deliveries counts channel send outcomes.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total number of notification deliveries by channel and result.",
	}, []string{"channel", "result"})

	// DeliveryLatency observes send latency including retries.
	DeliveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_latency_seconds",
		Help:      "Latency distribution for notification delivery.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"channel"})

	// DigestPending tracks notifications waiting for the next digest flush.
	DigestPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "digest_pending",
		Help:      "Current number of notifications batched for digest delivery.",
	})

	// EventsDropped counts events that could not be queued.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Total number of lifecycle events dropped because the dispatch queue was full.",
	})

	// HTTPRequests counts API requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
)
