package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stateshot",
		Name:      "states_total",
		Help:      "States processed, by outcome.",
	}, []string{"outcome"})
	metricUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stateshot",
		Name:      "units_total",
		Help:      "Suite runs per browser, by final phase.",
	}, []string{"phase"})
	metricStateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stateshot",
		Name:      "state_duration_seconds",
		Help:      "Time from the first action of a state to its capture.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	metricUnitsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stateshot",
		Name:      "units_in_flight",
		Help:      "Suite runs currently executing.",
	})
)

func recordOutcome(r Result) {
	metricStates.WithLabelValues(string(r.Outcome)).Inc()
	if r.Duration > 0 {
		metricStateDuration.Observe(r.Duration.Seconds())
	}
}

func recordUnit(p Phase) {
	metricUnits.WithLabelValues(p.String()).Inc()
}
