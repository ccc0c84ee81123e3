// Package obsv implements matchengine.Metrics against
// prometheus/client_golang, and exposes an admin HTTP surface via
// gorilla/mux distinct from the gateway's gin router. Grounded on the
// teacher repo's internal/monitoring.MetricsCollector shape.
package obsv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements matchengine.Metrics.
type Collector struct {
	matchDuration *prometheus.HistogramVec
	tradesTotal   *prometheus.CounterVec
	ordersTotal   *prometheus.CounterVec
	pendingGauge  *prometheus.GaugeVec
}

// NewCollector registers the matchd_* metric families against reg. A
// nil reg skips registration (promauto.With(nil)'s documented
// behavior) — use prometheus.DefaultRegisterer explicitly to expose
// these on the default /metrics handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		matchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchd_match_duration_seconds",
			Help:    "Duration of one order's admission through Phase A/B of the persistence coordinator.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"market"}),
		tradesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchd_trades_total",
			Help: "Total number of trades produced by the matcher.",
		}, []string{"market"}),
		ordersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchd_orders_total",
			Help: "Total number of orders admitted.",
		}, []string{"market"}),
		pendingGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchd_pending_orders",
			Help: "Number of orders currently resting on the book.",
		}, []string{"market"}),
	}
}

func (c *Collector) ObserveMatchDuration(market string, d time.Duration) {
	c.matchDuration.WithLabelValues(market).Observe(d.Seconds())
}

func (c *Collector) IncTrades(market string, n int) {
	if n > 0 {
		c.tradesTotal.WithLabelValues(market).Add(float64(n))
	}
}

func (c *Collector) IncOrders(market string) {
	c.ordersTotal.WithLabelValues(market).Inc()
}

func (c *Collector) SetPending(market string, n int) {
	c.pendingGauge.WithLabelValues(market).Set(float64(n))
}
