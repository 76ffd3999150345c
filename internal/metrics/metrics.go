// Package metrics holds the Prometheus collectors of the order lifecycle.
//
// Collectors are registered once on the default registry and exposed through
// Handler():
//
//	r.Handle("/metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "created_total",
			Help:      "Orders committed as PENDING.",
		},
		[]string{"payment_method"},
	)

	PaymentDispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "payment_dispatch_failures_total",
			Help:      "Orders committed whose payment could not be initiated.",
		},
		[]string{"payment_method"},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	OrdersCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orders",
		Name:      "canceled_total",
		Help:      "Orders moved to CANCELED.",
	})

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orders",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of payment service calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "result"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OrdersCreated,
			PaymentDispatchFailures,
			Settlements,
			OrdersCanceled,
			GatewayDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
