package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "surety"

type Metrics struct {
	Txs            *prometheus.CounterVec
	FlightStatuses *prometheus.CounterVec
	Height         prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Txs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "txs_total",
			Help:      "Finalized transactions by type and result.",
		}, []string{"type", "result"})),
		FlightStatuses: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "flight_statuses_total",
			Help:      "Flight statuses settled by oracle quorum.",
		}, []string{"status"})),
		Height: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "height",
			Help:      "Last finalized block height.",
		})),
	}
}

// register reuses an identical collector already present in reg.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
