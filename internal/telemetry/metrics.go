package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Collectors returns Prometheus collectors exposing the emitter's
// queue depth, drop count, and delivered count. They are registered on
// the gateway's shared registry at startup.
func Collectors(namespace string, e *Emitter) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "queue_depth",
				Help:      "Number of access records awaiting delivery",
			},
			func() float64 { return float64(e.Queue().Len()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "dropped_total",
				Help:      "Total access records dropped by overflow or failed delivery",
			},
			func() float64 { return float64(e.Queue().Dropped()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "delivered_total",
				Help:      "Total access records delivered to the indexing backend",
			},
			func() float64 { return float64(e.Delivered()) },
		),
	}
}
