package matchengine

import "context"

// Store is the persistence interface the engine consumes (spec §6).
// It is implemented out-of-core by internal/store/postgres and, for
// tests, internal/store/memstore.
type Store interface {
	GetLastOrderID(ctx context.Context, market string) (OrderID, bool, error)
	GetLastTradeID(ctx context.Context, market string) (TradeID, bool, error)
	GetPendingOrderIDs(ctx context.Context, market string) ([]OrderID, error)
	GetOrders(ctx context.Context, ids []OrderID, market string) ([]Order, error)
	GetOrderTrades(ctx context.Context, orderID OrderID, market string) ([]Trade, error)

	// InsertOrder and InsertPendingMarker are the two Phase A writes.
	// Both must be idempotent on (order_id, exchange).
	InsertOrder(ctx context.Context, o Order) error
	InsertPendingMarker(ctx context.Context, orderID OrderID, market string) error

	// InsertTrades atomically appends trades and deletes the
	// completed orders' pending-index rows (Phase C).
	InsertTrades(ctx context.Context, market string, trades []Trade, completed []OrderID) error

	InsertCancellation(ctx context.Context, market string, orderID OrderID) error

	GetUserOrders(ctx context.Context, userID UserID, market string) ([]OrderID, error)
	GetOrderUser(ctx context.Context, orderID OrderID, market string) (UserID, bool, error)
}
