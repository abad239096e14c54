// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assetdesk_events_total",
	Help: "The total number of domain events dispatched, by event type",
}, []string{"event_type"})

var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "assetdesk_events_dropped_total",
	Help: "The total number of domain events dropped because the bus was full",
})

var TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assetdesk_request_transitions_total",
	Help: "The total number of request transitions attempted, by transition and outcome",
}, []string{"transition", "outcome"})

var HistoryEntriesWritten = promauto.NewCounter(prometheus.CounterOpts{
	Name: "assetdesk_history_entries_written_total",
	Help: "The total number of history entries delivered to user records",
})

var FormSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "assetdesk_form_sessions",
	Help: "The number of open form sessions",
})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "assetdesk_http_request_duration_seconds",
	Help:    "HTTP request latency by route pattern and status",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Outcome labels a transition result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
