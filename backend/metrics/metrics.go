// Package metrics exposes the agent's prometheus collectors.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stepup_agent"

// Frame results
const (
	FrameDetected = "detected"
	FrameNoFace   = "no_face"
	FrameError    = "error"
)

var (
	KindLabels    = []string{"kind"}
	OutcomeLabels = []string{"kind", "status", "risk"}
	CallLabels    = []string{"call"}

	// GatewayLatencyBuckets go from 5ms to 30s, the default gateway timeout
	GatewayLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

var (
	sessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Counter of authorization and enrollment sessions started.",
		},
		KindLabels,
	)

	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions that have not reached a terminal state.",
		},
		KindLabels,
	)

	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Counter of session outcomes broken out by status and risk label.",
		},
		OutcomeLabels,
	)

	framesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Counter of frames handed to the descriptor extractor, by result.",
		},
		[]string{"result"},
	)

	stabilityTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stability_triggers_total",
			Help:      "Counter of capture sessions that reached their stable frame threshold.",
		},
		KindLabels,
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Backend gateway call latency distribution in seconds.",
			Buckets:   GatewayLatencyBuckets,
		},
		CallLabels,
	)

	gatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_request_errors_total",
			Help:      "Counter of failed backend gateway calls.",
		},
		CallLabels,
	)
)

var registerMetrics sync.Once

// Register all metrics with the default registry.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		prometheus.MustRegister(sessionsStarted)
		prometheus.MustRegister(sessionsActive)
		prometheus.MustRegister(outcomes)
		prometheus.MustRegister(framesProcessed)
		prometheus.MustRegister(stabilityTriggers)
		prometheus.MustRegister(gatewayDuration)
		prometheus.MustRegister(gatewayErrors)
		for _, collector := range customCollectors {
			prometheus.MustRegister(collector)
		}
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Reset clears every collector. Tests only.
func Reset() {
	sessionsStarted.Reset()
	sessionsActive.Reset()
	outcomes.Reset()
	framesProcessed.Reset()
	stabilityTriggers.Reset()
	gatewayDuration.Reset()
	gatewayErrors.Reset()
}

// RecordSessionStarted counts a new session and marks it active
func RecordSessionStarted(kind string) {
	sessionsStarted.WithLabelValues(kind).Inc()
	sessionsActive.WithLabelValues(kind).Inc()
}

// RecordOutcome counts a terminal outcome and marks the session inactive
func RecordOutcome(kind, status, risk string) {
	outcomes.WithLabelValues(kind, status, risk).Inc()
	sessionsActive.WithLabelValues(kind).Dec()
}

// RecordFrame counts one extractor call
func RecordFrame(result string) {
	framesProcessed.WithLabelValues(result).Inc()
}

// RecordStabilityTrigger counts a threshold crossing
func RecordStabilityTrigger(kind string) {
	stabilityTriggers.WithLabelValues(kind).Inc()
}

// ObserveGatewayCall records latency and failure of a gateway call
func ObserveGatewayCall(call string, d time.Duration, err error) {
	gatewayDuration.WithLabelValues(call).Observe(d.Seconds())
	if err != nil {
		gatewayErrors.WithLabelValues(call).Inc()
	}
}
