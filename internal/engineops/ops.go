// Package engineops defines the wire-level request/response shapes and
// operation names for the Engine RPC surface (spec §6), shared by the
// match engine process (server side, internal/wire.Server) and the
// gateway (client side, internal/wire.Client) so the two processes
// never drift on a field name or an op string.
package engineops

import (
	"context"
	"encoding/json"

	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/wire"
)

const (
	OpInsertOrder      = "insert_order"
	OpGetUserOrders    = "get_user_orders"
	OpGetOrderProgress = "get_order_progress"
	OpTryDeleteOrder   = "try_delete_order"
)

// InsertOrderRequest is the payload for OpInsertOrder.
type InsertOrderRequest struct {
	UserID int64                    `json:"user_id"`
	Order  matchengine.ClientOrder  `json:"order"`
}

// InsertOrderResponse is the result of OpInsertOrder.
type InsertOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

// GetUserOrdersRequest is the payload for OpGetUserOrders.
type GetUserOrdersRequest struct {
	UserID int64 `json:"user_id"`
}

// GetUserOrdersResponse is the result of OpGetUserOrders.
type GetUserOrdersResponse struct {
	OrderIDs []int64 `json:"order_ids"`
}

// GetOrderProgressRequest is the payload for OpGetOrderProgress.
type GetOrderProgressRequest struct {
	UserID  int64 `json:"user_id"`
	OrderID int64 `json:"order_id"`
}

// GetOrderProgressResponse is the result of OpGetOrderProgress.
type GetOrderProgressResponse struct {
	Open      bool    `json:"open"`
	Remaining float64 `json:"remaining"`
}

// TryDeleteOrderRequest is the payload for OpTryDeleteOrder.
type TryDeleteOrderRequest struct {
	UserID  int64 `json:"user_id"`
	OrderID int64 `json:"order_id"`
}

// TryDeleteOrderResponse is the result of OpTryDeleteOrder.
type TryDeleteOrderResponse struct {
	Removed bool `json:"removed"`
}

// RegisterHandlers binds every Engine RPC surface operation on srv to
// engine, converting between the wire shapes above and matchengine's
// native types.
func RegisterHandlers(srv *wire.Server, engine *matchengine.Engine) {
	srv.Register(OpInsertOrder, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req InsertOrderRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		id, err := engine.InsertOrder(ctx, matchengine.UserID(req.UserID), req.Order)
		if err != nil {
			return nil, err
		}
		return InsertOrderResponse{OrderID: int64(id)}, nil
	})

	srv.Register(OpGetUserOrders, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req GetUserOrdersRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		ids, err := engine.GetUserOrders(ctx, matchengine.UserID(req.UserID))
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(ids))
		for i, id := range ids {
			out[i] = int64(id)
		}
		return GetUserOrdersResponse{OrderIDs: out}, nil
	})

	srv.Register(OpGetOrderProgress, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req GetOrderProgressRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		open, remaining, err := engine.GetOrderProgress(ctx, matchengine.UserID(req.UserID), matchengine.OrderID(req.OrderID))
		if err != nil {
			return nil, err
		}
		return GetOrderProgressResponse{Open: open, Remaining: remaining}, nil
	})

	srv.Register(OpTryDeleteOrder, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req TryDeleteOrderRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		removed, err := engine.TryDeleteOrder(ctx, matchengine.UserID(req.UserID), matchengine.OrderID(req.OrderID))
		if err != nil {
			return nil, err
		}
		return TryDeleteOrderResponse{Removed: removed}, nil
	})
}
