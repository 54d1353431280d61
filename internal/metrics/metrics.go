// ABOUTME: Prometheus metrics for turns, frames, tools and recall cache
// ABOUTME: Record helpers keep instrumentation call sites to one line

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parrot_turns_total",
			Help: "Total number of conversational turns",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parrot_turn_duration_seconds",
			Help:    "End-to-end turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parrot_frames_total",
			Help: "Total number of progress frames streamed, by type",
		},
		[]string{"type"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parrot_tool_calls_total",
			Help: "Total number of tool invocations observed in traces",
		},
		[]string{"tool"},
	)

	recallLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parrot_recall_lookups_total",
			Help: "Recall cache lookups by result",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parrot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	initOnce sync.Once
)

// Init registers all collectors with the default registry
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			framesTotal,
			toolCallsTotal,
			recallLookupsTotal,
			httpRequestsTotal,
		)
	})
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records one completed turn
func RecordTurn(outcome string, duration time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(duration.Seconds())
}

// RecordFrame records one streamed frame
func RecordFrame(frameType string) {
	framesTotal.WithLabelValues(frameType).Inc()
}

// RecordToolCall records one tool invocation
func RecordToolCall(tool string) {
	toolCallsTotal.WithLabelValues(tool).Inc()
}

// RecordRecallLookup records a recall cache lookup ("hit" or "miss")
func RecordRecallLookup(result string) {
	recallLookupsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one handled HTTP request
func RecordHTTPRequest(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}
