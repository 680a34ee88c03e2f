// README: Prometheus collectors for HTTP traffic, external calls and the notifier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fooddash_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fooddash_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fooddash_external_calls_total",
		Help: "Mapping provider calls by operation and result (ok, error, timeout, retry).",
	}, []string{"op", "result"})

	ExternalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fooddash_external_call_duration_seconds",
		Help:    "Mapping provider latency per operation, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	NotifierEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fooddash_notifier_events_total",
		Help: "Real-time events delivered to sinks by sink, event type and result.",
	}, []string{"sink", "event", "result"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fooddash_ws_clients",
		Help: "Currently connected real-time clients.",
	})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fooddash_orders_created_total",
		Help: "Orders persisted by the lifecycle service.",
	})
)
