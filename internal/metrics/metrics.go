// Package metrics defines the Prometheus metrics exported by the reporter agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geo_reporter"

// ReportsTotal counts completed report attempts.
// Labels:
//   - status: "success" or "failure"
//   - reason: failure reason, empty on success
var ReportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Total number of completed location report attempts.",
	},
	[]string{"status", "reason"},
)

// ZeroPositionReportsTotal counts successful reports of the (0, 0) fallback.
var ZeroPositionReportsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "zero_position_reports_total",
		Help:      "Total number of successful reports carrying the zero-position fallback.",
	},
)

// RegisterPendingLocationRequests exposes the number of unresolved one-shot
// location requests through the given callback.
func RegisterPendingLocationRequests(reg prometheus.Registerer, pending func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_location_requests",
			Help:      "Number of one-shot location requests that have not resolved.",
		},
		func() float64 { return float64(pending()) },
	))
}
