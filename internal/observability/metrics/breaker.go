package metrics

import "github.com/prometheus/client_golang/prometheus"

// breakerStateValue maps gobreaker state names onto gauge values.
var breakerStateValue = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

func newBreakerStateGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mrag",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
}

func setBreakerState(gauge *prometheus.GaugeVec, service, operation, state string) {
	value, ok := breakerStateValue[state]
	if !ok {
		return
	}
	gauge.WithLabelValues(service, operation).Set(value)
}
