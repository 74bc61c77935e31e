package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_messages_processed_total",
			Help: "Send-message requests by outcome",
		},
		[]string{"outcome"}, // "ok" or an error kind
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supportchat_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	DomainErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_domain_errors_total",
			Help: "Errors surfaced by the orchestrator, by kind",
		},
		[]string{"operation", "kind"},
	)

	// Model gateway metrics
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportchat_gateway_latency_seconds",
			Help:    "Model provider call latency",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider"},
	)

	GatewayFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_gateway_failures_total",
			Help: "Model gateway failures, by kind",
		},
		[]string{"kind"},
	)

	// Worker metrics
	WorkerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_worker_requests_total",
			Help: "Queue worker requests, by subject and status",
		},
		[]string{"subject", "status"},
	)
)
