package arbiter

import "github.com/prometheus/client_golang/prometheus"

var (
	gpuOwner = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpud",
			Subsystem: "gpu",
			Name:      "owner",
			Help:      "Current GPU occupancy (1 for the active owner)",
		},
		[]string{"workload"},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpud",
			Subsystem: "gpu",
			Name:      "evictions_total",
			Help:      "Successful model evictions",
		},
	)

	evictionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpud",
			Subsystem: "gpu",
			Name:      "eviction_failures_total",
			Help:      "Evictions that failed or timed out",
		},
	)
)

var allWorkloads = []Workload{WorkloadNone, WorkloadInference, WorkloadTraining}

func init() {
	prometheus.MustRegister(gpuOwner, evictionsTotal, evictionFailures)
}

func observeOwner(active Workload) {
	for _, w := range allWorkloads {
		v := 0.0
		if w == active {
			v = 1.0
		}
		gpuOwner.WithLabelValues(string(w)).Set(v)
	}
}
