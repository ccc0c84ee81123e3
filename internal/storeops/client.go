package storeops

import (
	"context"

	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/wire"
)

// Client implements matchengine.Store by calling the Store RPC
// surface over internal/wire. cmd/matchengine dials one of these
// against the persistence service instead of linking internal/store
// directly, matching the original rustex-micro split between
// match_service and db_service as independent processes.
type Client struct {
	wc *wire.Client
}

// NewClient wraps an already-dialed wire.Client.
func NewClient(wc *wire.Client) *Client {
	return &Client{wc: wc}
}

// Dial connects to addr and returns a Client backed by it.
func Dial(addr string) (*Client, error) {
	wc, err := wire.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &Client{wc: wc}, nil
}

func (c *Client) GetLastOrderID(ctx context.Context, market string) (matchengine.OrderID, bool, error) {
	var resp idResponse
	if err := c.wc.Call(ctx, OpGetLastOrderID, marketRequest{Market: market}, &resp); err != nil {
		return 0, false, err
	}
	return matchengine.OrderID(resp.ID), resp.Found, nil
}

func (c *Client) GetLastTradeID(ctx context.Context, market string) (matchengine.TradeID, bool, error) {
	var resp idResponse
	if err := c.wc.Call(ctx, OpGetLastTradeID, marketRequest{Market: market}, &resp); err != nil {
		return 0, false, err
	}
	return matchengine.TradeID(resp.ID), resp.Found, nil
}

func (c *Client) GetPendingOrderIDs(ctx context.Context, market string) ([]matchengine.OrderID, error) {
	var resp struct {
		OrderIDs []int64 `json:"order_ids"`
	}
	if err := c.wc.Call(ctx, OpGetPendingOrderIDs, marketRequest{Market: market}, &resp); err != nil {
		return nil, err
	}
	out := make([]matchengine.OrderID, len(resp.OrderIDs))
	for i, id := range resp.OrderIDs {
		out[i] = matchengine.OrderID(id)
	}
	return out, nil
}

func (c *Client) GetOrders(ctx context.Context, ids []matchengine.OrderID, market string) ([]matchengine.Order, error) {
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	var resp struct {
		Orders []matchengine.Order `json:"orders"`
	}
	if err := c.wc.Call(ctx, OpGetOrders, getOrdersRequest{IDs: raw, Market: market}, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) GetOrderTrades(ctx context.Context, orderID matchengine.OrderID, market string) ([]matchengine.Trade, error) {
	var resp struct {
		Trades []matchengine.Trade `json:"trades"`
	}
	req := orderTradesRequest{OrderID: int64(orderID), Market: market}
	if err := c.wc.Call(ctx, OpGetOrderTrades, req, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

func (c *Client) InsertOrder(ctx context.Context, o matchengine.Order) error {
	return c.wc.Call(ctx, OpInsertOrder, o, nil)
}

func (c *Client) InsertPendingMarker(ctx context.Context, orderID matchengine.OrderID, market string) error {
	req := insertPendingMarkerRequest{OrderID: int64(orderID), Market: market}
	return c.wc.Call(ctx, OpInsertPendingMarker, req, nil)
}

func (c *Client) InsertTrades(ctx context.Context, market string, trades []matchengine.Trade, completed []matchengine.OrderID) error {
	ids := make([]int64, len(completed))
	for i, id := range completed {
		ids[i] = int64(id)
	}
	req := insertTradesRequest{Market: market, Trades: trades, Completed: ids}
	return c.wc.Call(ctx, OpInsertTrades, req, nil)
}

func (c *Client) InsertCancellation(ctx context.Context, market string, orderID matchengine.OrderID) error {
	req := insertCancellationRequest{Market: market, OrderID: int64(orderID)}
	return c.wc.Call(ctx, OpInsertCancellation, req, nil)
}

func (c *Client) GetUserOrders(ctx context.Context, userID matchengine.UserID, market string) ([]matchengine.OrderID, error) {
	var resp userOrdersResponse
	req := userOrdersRequest{UserID: int64(userID), Market: market}
	if err := c.wc.Call(ctx, OpGetUserOrders, req, &resp); err != nil {
		return nil, err
	}
	out := make([]matchengine.OrderID, len(resp.OrderIDs))
	for i, id := range resp.OrderIDs {
		out[i] = matchengine.OrderID(id)
	}
	return out, nil
}

func (c *Client) GetOrderUser(ctx context.Context, orderID matchengine.OrderID, market string) (matchengine.UserID, bool, error) {
	var resp orderUserResponse
	req := orderTradesRequest{OrderID: int64(orderID), Market: market}
	if err := c.wc.Call(ctx, OpGetOrderUser, req, &resp); err != nil {
		return 0, false, err
	}
	return matchengine.UserID(resp.UserID), resp.Found, nil
}

var _ matchengine.Store = (*Client)(nil)
