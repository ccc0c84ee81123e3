// Package postgres implements matchengine.Store against the four
// tables named in spec §6, using gorm.io/gorm for CRUD and
// github.com/jmoiron/sqlx for the two recovery aggregate queries.
// Grounded on the teacher repo's internal/db/models and
// internal/db/repositories package shapes.
package postgres

import "time"

// OrderRow is the gorm model for the orders table. Primary key
// (order_id, exchange).
type OrderRow struct {
	OrderID   int64  `gorm:"primaryKey;column:order_id"`
	Exchange  string `gorm:"primaryKey;column:exchange"`
	UserID    int64  `gorm:"column:user_id"`
	Price     int64  `gorm:"column:price"`
	Quantity  float64 `gorm:"column:quantity"`
	OrderType string `gorm:"column:order_type"` // "buy" | "sell"
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderRow) TableName() string { return "orders" }

// TradeRow is the gorm model for the trades table. Primary key
// (trade_id, exchange).
type TradeRow struct {
	TradeID   int64     `gorm:"primaryKey;column:trade_id"`
	Exchange  string    `gorm:"primaryKey;column:exchange"`
	BuyOrder  int64     `gorm:"column:buy_order"`
	SellOrder int64     `gorm:"column:sell_order"`
	Price     int64     `gorm:"column:price"`
	Quantity  float64   `gorm:"column:quantity"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TradeRow) TableName() string { return "trades" }

// PendingOrderRow is the gorm model for the pending_orders index.
// Primary key (order_id, exchange).
type PendingOrderRow struct {
	OrderID  int64  `gorm:"primaryKey;column:order_id"`
	Exchange string `gorm:"primaryKey;column:exchange"`
}

func (PendingOrderRow) TableName() string { return "pending_orders" }

// CancelledOrderRow is the gorm model for the cancelled_orders table.
// Primary key (order_id, exchange).
type CancelledOrderRow struct {
	OrderID   int64     `gorm:"primaryKey;column:order_id"`
	Exchange  string    `gorm:"primaryKey;column:exchange"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CancelledOrderRow) TableName() string { return "cancelled_orders" }

// AllModels lists every row type, for AutoMigrate call sites.
func AllModels() []any {
	return []any{&OrderRow{}, &TradeRow{}, &PendingOrderRow{}, &CancelledOrderRow{}}
}
