package idle

import "github.com/prometheus/client_golang/prometheus"

var idleShutdowns = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "gpud",
		Subsystem: "idle",
		Name:      "shutdowns_total",
		Help:      "Instance stops requested by the idle scheduler",
	},
)

func init() {
	prometheus.MustRegister(idleShutdowns)
}
