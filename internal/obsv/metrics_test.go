package obsv

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsPerMarketMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.IncOrders("BTC_USD")
	c.IncOrders("BTC_USD")
	c.IncTrades("BTC_USD", 3)
	c.SetPending("BTC_USD", 5)
	c.ObserveMatchDuration("BTC_USD", 2*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	orders := byName["matchd_orders_total"]
	require.NotNil(t, orders)
	assert.Equal(t, 2.0, orders.Metric[0].GetCounter().GetValue())

	trades := byName["matchd_trades_total"]
	require.NotNil(t, trades)
	assert.Equal(t, 3.0, trades.Metric[0].GetCounter().GetValue())

	pending := byName["matchd_pending_orders"]
	require.NotNil(t, pending)
	assert.Equal(t, 5.0, pending.Metric[0].GetGauge().GetValue())

	require.NotNil(t, byName["matchd_match_duration_seconds"])
}

func TestCollector_IncTrades_ZeroIsNoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.IncTrades("ETH_USD", 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "matchd_trades_total" {
			assert.Empty(t, f.Metric)
		}
	}
}
