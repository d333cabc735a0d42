package lifecycle

import "github.com/prometheus/client_golang/prometheus"

var (
	instanceState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpud",
			Subsystem: "instance",
			Name:      "state",
			Help:      "Current instance lifecycle state (1 for the active state)",
		},
		[]string{"state"},
	)

	startsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpud",
			Subsystem: "instance",
			Name:      "starts_total",
			Help:      "Remote start commands issued",
		},
	)

	stopsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gpud",
			Subsystem: "instance",
			Name:      "stops_total",
			Help:      "Remote stop commands issued",
		},
	)
)

var allStates = []State{StateStopped, StateStarting, StateReady, StateDegraded, StateStopPending, StateError}

func init() {
	prometheus.MustRegister(instanceState, startsTotal, stopsTotal)
}

func observeState(active State) {
	for _, s := range allStates {
		v := 0.0
		if s == active {
			v = 1.0
		}
		instanceState.WithLabelValues(string(s)).Set(v)
	}
}
