package storeops_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/store/memstore"
	"github.com/rustexchange/matchd/internal/storeops"
	"github.com/rustexchange/matchd/internal/wire"
)

func startStoreService(t *testing.T, st matchengine.Store) *storeops.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := wire.NewServer(addr, 16, zap.NewNop())
	storeops.RegisterHandlers(srv, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	client, err := storeops.Dial(addr)
	require.NoError(t, err)
	return client
}

func TestClient_InsertOrderThenReadBack(t *testing.T) {
	st := memstore.New()
	client := startStoreService(t, st)
	ctx := context.Background()

	order := matchengine.Order{
		OrderID: 1, UserID: 9, Price: 100, Quantity: 5,
		Side: matchengine.Buy, Exchange: "BTC_USD", CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertOrder(ctx, order))
	require.NoError(t, client.InsertPendingMarker(ctx, order.OrderID, "BTC_USD"))

	lastID, found, err := client.GetLastOrderID(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, matchengine.OrderID(1), lastID)

	pending, err := client.GetPendingOrderIDs(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.Equal(t, []matchengine.OrderID{1}, pending)

	orders, err := client.GetOrders(ctx, []matchengine.OrderID{1}, "BTC_USD")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, matchengine.UserID(9), orders[0].UserID)

	owner, found, err := client.GetOrderUser(ctx, 1, "BTC_USD")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, matchengine.UserID(9), owner)

	userOrders, err := client.GetUserOrders(ctx, 9, "BTC_USD")
	require.NoError(t, err)
	assert.Equal(t, []matchengine.OrderID{1}, userOrders)
}

func TestClient_InsertTradesAndCancellation(t *testing.T) {
	st := memstore.New()
	client := startStoreService(t, st)
	ctx := context.Background()

	buy := matchengine.Order{OrderID: 1, UserID: 1, Price: 100, Quantity: 5, Side: matchengine.Buy, Exchange: "BTC_USD", CreatedAt: time.Now()}
	sell := matchengine.Order{OrderID: 2, UserID: 2, Price: 100, Quantity: 5, Side: matchengine.Sell, Exchange: "BTC_USD", CreatedAt: time.Now()}
	require.NoError(t, client.InsertOrder(ctx, buy))
	require.NoError(t, client.InsertOrder(ctx, sell))
	require.NoError(t, client.InsertPendingMarker(ctx, 1, "BTC_USD"))
	require.NoError(t, client.InsertPendingMarker(ctx, 2, "BTC_USD"))

	trade := matchengine.Trade{
		TradeID: 1, Exchange: "BTC_USD", BuyOrderID: 1, SellOrderID: 2,
		Price: 100, Quantity: 5, CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertTrades(ctx, "BTC_USD", []matchengine.Trade{trade}, []matchengine.OrderID{1, 2}))

	lastTrade, found, err := client.GetLastTradeID(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, matchengine.TradeID(1), lastTrade)

	pending, err := client.GetPendingOrderIDs(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.Empty(t, pending)

	trades, err := client.GetOrderTrades(ctx, 1, "BTC_USD")
	require.NoError(t, err)
	require.Len(t, trades, 1)

	order3 := matchengine.Order{OrderID: 3, UserID: 1, Price: 90, Quantity: 1, Side: matchengine.Buy, Exchange: "BTC_USD", CreatedAt: time.Now()}
	require.NoError(t, client.InsertOrder(ctx, order3))
	require.NoError(t, client.InsertCancellation(ctx, "BTC_USD", 3))
}
