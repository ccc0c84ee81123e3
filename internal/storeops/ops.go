// Package storeops defines the wire-level request/response shapes and
// operation names for the Store RPC surface (SPEC_FULL.md DOMAIN
// STACK, "one fabric, two service registries"): the match engine
// process talks to the persistence service over the same
// internal/wire framing used for the Engine RPC surface, one op per
// matchengine.Store method. RegisterHandlers binds the server side;
// Client implements matchengine.Store itself, so cmd/matchengine can
// hand a *storeops.Client straight to matchengine.New and
// recovery.Load without a second abstraction layer.
package storeops

import (
	"context"
	"encoding/json"

	"github.com/rustexchange/matchd/internal/matchengine"
	"github.com/rustexchange/matchd/internal/wire"
)

const (
	OpGetLastOrderID      = "get_last_order_id"
	OpGetLastTradeID      = "get_last_trade_id"
	OpGetPendingOrderIDs  = "get_pending_order_ids"
	OpGetOrders           = "get_orders"
	OpGetOrderTrades      = "get_order_trades"
	OpInsertOrder         = "insert_order"
	OpInsertPendingMarker = "insert_pending_marker"
	OpInsertTrades        = "insert_trades"
	OpInsertCancellation  = "insert_cancellation"
	OpGetUserOrders       = "get_user_orders"
	OpGetOrderUser        = "get_order_user"
)

type marketRequest struct {
	Market string `json:"market"`
}

type idResponse struct {
	ID    int64 `json:"id"`
	Found bool  `json:"found"`
}

type getOrdersRequest struct {
	IDs    []int64 `json:"ids"`
	Market string  `json:"market"`
}

type orderTradesRequest struct {
	OrderID int64  `json:"order_id"`
	Market  string `json:"market"`
}

type insertPendingMarkerRequest struct {
	OrderID int64  `json:"order_id"`
	Market  string `json:"market"`
}

type insertTradesRequest struct {
	Market    string             `json:"market"`
	Trades    []matchengine.Trade `json:"trades"`
	Completed []int64            `json:"completed"`
}

type insertCancellationRequest struct {
	Market  string `json:"market"`
	OrderID int64  `json:"order_id"`
}

type userOrdersRequest struct {
	UserID int64  `json:"user_id"`
	Market string `json:"market"`
}

type userOrdersResponse struct {
	OrderIDs []int64 `json:"order_ids"`
}

type orderUserResponse struct {
	UserID int64 `json:"user_id"`
	Found  bool  `json:"found"`
}

// RegisterHandlers binds every Store RPC surface operation on srv to
// store, converting between the wire shapes above and matchengine's
// native Store interface. Run by cmd/storeservice.
func RegisterHandlers(srv *wire.Server, store matchengine.Store) {
	srv.Register(OpGetLastOrderID, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req marketRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		id, found, err := store.GetLastOrderID(ctx, req.Market)
		if err != nil {
			return nil, err
		}
		return idResponse{ID: int64(id), Found: found}, nil
	})

	srv.Register(OpGetLastTradeID, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req marketRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		id, found, err := store.GetLastTradeID(ctx, req.Market)
		if err != nil {
			return nil, err
		}
		return idResponse{ID: int64(id), Found: found}, nil
	})

	srv.Register(OpGetPendingOrderIDs, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req marketRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		ids, err := store.GetPendingOrderIDs(ctx, req.Market)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(ids))
		for i, id := range ids {
			out[i] = int64(id)
		}
		return struct {
			OrderIDs []int64 `json:"order_ids"`
		}{out}, nil
	})

	srv.Register(OpGetOrders, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req getOrdersRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		ids := make([]matchengine.OrderID, len(req.IDs))
		for i, id := range req.IDs {
			ids[i] = matchengine.OrderID(id)
		}
		orders, err := store.GetOrders(ctx, ids, req.Market)
		if err != nil {
			return nil, err
		}
		return struct {
			Orders []matchengine.Order `json:"orders"`
		}{orders}, nil
	})

	srv.Register(OpGetOrderTrades, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req orderTradesRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		trades, err := store.GetOrderTrades(ctx, matchengine.OrderID(req.OrderID), req.Market)
		if err != nil {
			return nil, err
		}
		return struct {
			Trades []matchengine.Trade `json:"trades"`
		}{trades}, nil
	})

	srv.Register(OpInsertOrder, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req matchengine.Order
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := store.InsertOrder(ctx, req); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})

	srv.Register(OpInsertPendingMarker, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req insertPendingMarkerRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := store.InsertPendingMarker(ctx, matchengine.OrderID(req.OrderID), req.Market); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})

	srv.Register(OpInsertTrades, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req insertTradesRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		completed := make([]matchengine.OrderID, len(req.Completed))
		for i, id := range req.Completed {
			completed[i] = matchengine.OrderID(id)
		}
		if err := store.InsertTrades(ctx, req.Market, req.Trades, completed); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})

	srv.Register(OpInsertCancellation, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req insertCancellationRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if err := store.InsertCancellation(ctx, req.Market, matchengine.OrderID(req.OrderID)); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	})

	srv.Register(OpGetUserOrders, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req userOrdersRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		ids, err := store.GetUserOrders(ctx, matchengine.UserID(req.UserID), req.Market)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(ids))
		for i, id := range ids {
			out[i] = int64(id)
		}
		return userOrdersResponse{OrderIDs: out}, nil
	})

	srv.Register(OpGetOrderUser, func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req orderTradesRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		userID, found, err := store.GetOrderUser(ctx, matchengine.OrderID(req.OrderID), req.Market)
		if err != nil {
			return nil, err
		}
		return orderUserResponse{UserID: int64(userID), Found: found}, nil
	})
}
