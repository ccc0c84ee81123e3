package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rustexchange/matchd/internal/matchengine"
)

// Repository implements matchengine.Store against Postgres.
type Repository struct {
	db     *gorm.DB
	sqlxDB *sqlx.DB
	logger *zap.Logger
}

// New wraps an already-opened *gorm.DB. sqlDB is the *sql.DB
// underlying the same connection pool, wrapped with sqlx for the two
// hand-rolled aggregate queries recovery needs — gorm's query builder
// doesn't read as naturally for a bare MAX(...) as a raw query does.
func New(db *gorm.DB, sqlDB *sql.DB, logger *zap.Logger) (*Repository, error) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("postgres: automigrate: %w", err)
	}
	return &Repository{
		db:     db,
		sqlxDB: sqlx.NewDb(sqlDB, db.Dialector.Name()),
		logger: logger,
	}, nil
}

func sideString(s matchengine.OrderSide) string {
	if s == matchengine.Buy {
		return "buy"
	}
	return "sell"
}

func sideFromString(s string) matchengine.OrderSide {
	if s == "buy" {
		return matchengine.Buy
	}
	return matchengine.Sell
}

func (r *Repository) GetLastOrderID(ctx context.Context, market string) (matchengine.OrderID, bool, error) {
	var max sql.NullInt64
	err := r.sqlxDB.GetContext(ctx, &max, `SELECT MAX(order_id) FROM orders WHERE exchange = $1`, market)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return matchengine.OrderID(max.Int64), true, nil
}

func (r *Repository) GetLastTradeID(ctx context.Context, market string) (matchengine.TradeID, bool, error) {
	var max sql.NullInt64
	err := r.sqlxDB.GetContext(ctx, &max, `SELECT MAX(trade_id) FROM trades WHERE exchange = $1`, market)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return matchengine.TradeID(max.Int64), true, nil
}

func (r *Repository) GetPendingOrderIDs(ctx context.Context, market string) ([]matchengine.OrderID, error) {
	var ids []int64
	err := r.sqlxDB.SelectContext(ctx, &ids, `SELECT order_id FROM pending_orders WHERE exchange = $1`, market)
	if err != nil {
		return nil, err
	}
	out := make([]matchengine.OrderID, len(ids))
	for i, id := range ids {
		out[i] = matchengine.OrderID(id)
	}
	return out, nil
}

func (r *Repository) GetOrders(ctx context.Context, ids []matchengine.OrderID, market string) ([]matchengine.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	var rows []OrderRow
	err := r.db.WithContext(ctx).
		Where("exchange = ? AND order_id IN ?", market, raw).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]matchengine.Order, len(rows))
	for i, row := range rows {
		out[i] = matchengine.Order{
			OrderID:   matchengine.OrderID(row.OrderID),
			UserID:    matchengine.UserID(row.UserID),
			Price:     row.Price,
			Quantity:  row.Quantity,
			Side:      sideFromString(row.OrderType),
			Exchange:  row.Exchange,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}

func (r *Repository) GetOrderTrades(ctx context.Context, orderID matchengine.OrderID, market string) ([]matchengine.Trade, error) {
	var rows []TradeRow
	err := r.db.WithContext(ctx).
		Where("exchange = ? AND (buy_order = ? OR sell_order = ?)", market, int64(orderID), int64(orderID)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]matchengine.Trade, len(rows))
	for i, row := range rows {
		out[i] = matchengine.Trade{
			TradeID:     matchengine.TradeID(row.TradeID),
			Exchange:    row.Exchange,
			BuyOrderID:  matchengine.OrderID(row.BuyOrder),
			SellOrderID: matchengine.OrderID(row.SellOrder),
			Price:       row.Price,
			Quantity:    row.Quantity,
			CreatedAt:   row.CreatedAt,
		}
	}
	return out, nil
}

// InsertOrder and InsertPendingMarker are idempotent on
// (order_id, exchange): a conflicting primary key is a silent no-op,
// per spec §4.4 ("Both writes must be idempotent ... retries are
// forbidden at this layer").
func (r *Repository) InsertOrder(ctx context.Context, o matchengine.Order) error {
	row := OrderRow{
		OrderID:   int64(o.OrderID),
		Exchange:  o.Exchange,
		UserID:    int64(o.UserID),
		Price:     o.Price,
		Quantity:  o.Quantity,
		OrderType: sideString(o.Side),
		CreatedAt: o.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *Repository) InsertPendingMarker(ctx context.Context, orderID matchengine.OrderID, market string) error {
	row := PendingOrderRow{OrderID: int64(orderID), Exchange: market}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// InsertTrades atomically appends trades and removes the completed
// orders' pending-index rows (spec §4.4 Phase C).
func (r *Repository) InsertTrades(ctx context.Context, market string, trades []matchengine.Trade, completed []matchengine.OrderID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range trades {
			row := TradeRow{
				TradeID:   int64(t.TradeID),
				Exchange:  t.Exchange,
				BuyOrder:  int64(t.BuyOrderID),
				SellOrder: int64(t.SellOrderID),
				Price:     t.Price,
				Quantity:  t.Quantity,
				CreatedAt: t.CreatedAt,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		for _, id := range completed {
			if err := tx.Where("order_id = ? AND exchange = ?", int64(id), market).Delete(&PendingOrderRow{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCancellation records the cancellation and removes the order's
// pending-index row in one transaction, so recovery never reloads it.
func (r *Repository) InsertCancellation(ctx context.Context, market string, orderID matchengine.OrderID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := CancelledOrderRow{OrderID: int64(orderID), Exchange: market}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("order_id = ? AND exchange = ?", int64(orderID), market).Delete(&PendingOrderRow{}).Error
	})
}

func (r *Repository) GetUserOrders(ctx context.Context, userID matchengine.UserID, market string) ([]matchengine.OrderID, error) {
	var rows []OrderRow
	err := r.db.WithContext(ctx).
		Select("order_id").
		Where("exchange = ? AND user_id = ?", market, int64(userID)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]matchengine.OrderID, len(rows))
	for i, row := range rows {
		out[i] = matchengine.OrderID(row.OrderID)
	}
	return out, nil
}

func (r *Repository) GetOrderUser(ctx context.Context, orderID matchengine.OrderID, market string) (matchengine.UserID, bool, error) {
	var row OrderRow
	err := r.db.WithContext(ctx).
		Where("exchange = ? AND order_id = ?", market, int64(orderID)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return matchengine.UserID(row.UserID), true, nil
}
