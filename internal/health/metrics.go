package health

import "github.com/prometheus/client_golang/prometheus"

var (
	backendAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpud",
			Subsystem: "backend",
			Name:      "available",
			Help:      "Whether the backend's last probe succeeded (1/0)",
		},
		[]string{"backend"},
	)

	backendLatencyMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpud",
			Subsystem: "backend",
			Name:      "probe_latency_ms",
			Help:      "Round-trip latency of the last successful probe in milliseconds",
		},
		[]string{"backend"},
	)

	probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpud",
			Subsystem: "backend",
			Name:      "probe_failures_total",
			Help:      "Total failed health probes",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(backendAvailable, backendLatencyMs, probeFailures)
}

func observeEntry(e Entry) {
	v := 0.0
	if e.Available {
		v = 1.0
	}
	backendAvailable.WithLabelValues(e.Name).Set(v)
	if e.HasLatency {
		backendLatencyMs.WithLabelValues(e.Name).Set(float64(e.LatencyMs))
	}
}
