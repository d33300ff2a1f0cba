package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ocrCallsTotal,
		ocrCallLatencyMs,
		credentialRotationsTotal,
		activeCredentials,
	)
}

var (
	ocrCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_calls_total",
			Help: "Remote OCR calls by provider, model and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	ocrCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_call_latency_ms",
			Help:    "Remote OCR call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 60000},
		},
		[]string{"provider", "model", "outcome"},
	)

	credentialRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocr_credential_rotations_total",
			Help: "Times the rotation cursor advanced after a rate-limited call.",
		},
	)

	activeCredentials = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocr_active_credentials",
			Help: "Active credentials seen when the last image began processing.",
		},
	)
)

func ObserveOCRCall(provider, model, outcome string, latency time.Duration) {
	ocrCallsTotal.WithLabelValues(norm(provider), norm(model), outcome).Inc()
	ocrCallLatencyMs.WithLabelValues(norm(provider), norm(model), outcome).
		Observe(float64(latency / time.Millisecond))
}

func IncCredentialRotation() {
	credentialRotationsTotal.Inc()
}

func SetActiveCredentials(n int) {
	activeCredentials.Set(float64(n))
}
