package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GreetingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "greeter",
		Name:      "greetings_created_total",
		Help:      "Total number of greetings persisted",
	})

	VisitorsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greeter",
		Name:      "visitors_resolved_total",
		Help:      "Total number of visitor uploads resolved, by outcome",
	}, []string{"outcome"}) // returning, new

	MatcherRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greeter",
		Name:      "matcher_requests_total",
		Help:      "Remote matcher calls, by result",
	}, []string{"result"}) // match, no_match, unavailable

	MatcherDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "greeter",
		Name:      "matcher_request_duration_seconds",
		Help:      "Duration of remote matcher calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	BusMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greeter",
		Name:      "bus_messages_total",
		Help:      "Device bus messages handled, by kind",
	}, []string{"kind"}) // status, visitor_detected, greeting_published, malformed

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "greeter",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "greeter",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
