package engineops_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustexchange/matchd/internal/engineops"
	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/store/memstore"
	"github.com/rustexchange/matchd/internal/wire"
)

func startEngine(t *testing.T) (*wire.Client, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	book := matchengine.NewBook("BTC_USD", -1, -1)
	st := memstore.New()
	engine := matchengine.New("BTC_USD", book, st, zap.NewNop())

	srv := wire.NewServer(addr, 16, zap.NewNop())
	engineops.RegisterHandlers(srv, engine)

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

	client, err := wire.Dial(addr)
	require.NoError(t, err)
	return client, addr
}

func TestRegisterHandlers_InsertOrderThenGetProgress(t *testing.T) {
	client, _ := startEngine(t)
	ctx := context.Background()

	var insertResp engineops.InsertOrderResponse
	insertReq := engineops.InsertOrderRequest{
		UserID: 7,
		Order: matchengine.ClientOrder{
			Price: 100, Quantity: 3, Exchange: "BTC_USD", OrderType: matchengine.Buy,
		},
	}
	require.NoError(t, client.Call(ctx, engineops.OpInsertOrder, insertReq, &insertResp))

	var progress engineops.GetOrderProgressResponse
	progReq := engineops.GetOrderProgressRequest{UserID: 7, OrderID: insertResp.OrderID}
	require.NoError(t, client.Call(ctx, engineops.OpGetOrderProgress, progReq, &progress))
	assert.True(t, progress.Open)
	assert.Equal(t, 3.0, progress.Remaining)
}

func TestRegisterHandlers_GetOrderProgress_DeniesWrongUser(t *testing.T) {
	client, _ := startEngine(t)
	ctx := context.Background()

	var insertResp engineops.InsertOrderResponse
	insertReq := engineops.InsertOrderRequest{
		UserID: 1,
		Order: matchengine.ClientOrder{
			Price: 100, Quantity: 3, Exchange: "BTC_USD", OrderType: matchengine.Sell,
		},
	}
	require.NoError(t, client.Call(ctx, engineops.OpInsertOrder, insertReq, &insertResp))

	var progress engineops.GetOrderProgressResponse
	progReq := engineops.GetOrderProgressRequest{UserID: 2, OrderID: insertResp.OrderID}
	err := client.Call(ctx, engineops.OpGetOrderProgress, progReq, &progress)
	require.Error(t, err)
}

func TestRegisterHandlers_TryDeleteOrder_IsIdempotent(t *testing.T) {
	client, _ := startEngine(t)
	ctx := context.Background()

	var insertResp engineops.InsertOrderResponse
	insertReq := engineops.InsertOrderRequest{
		UserID: 3,
		Order: matchengine.ClientOrder{
			Price: 50, Quantity: 1, Exchange: "BTC_USD", OrderType: matchengine.Buy,
		},
	}
	require.NoError(t, client.Call(ctx, engineops.OpInsertOrder, insertReq, &insertResp))

	var del1, del2 engineops.TryDeleteOrderResponse
	delReq := engineops.TryDeleteOrderRequest{UserID: 3, OrderID: insertResp.OrderID}
	require.NoError(t, client.Call(ctx, engineops.OpTryDeleteOrder, delReq, &del1))
	assert.True(t, del1.Removed)

	require.NoError(t, client.Call(ctx, engineops.OpTryDeleteOrder, delReq, &del2))
	assert.False(t, del2.Removed)
}
