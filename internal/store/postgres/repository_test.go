package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rustexchange/matchd/internal/matchengine"
)

// newTestRepository opens an in-memory SQLite database behind gorm, the
// same pattern the teacher uses for its own HFT database tests —
// letting the persistence coordinator and recovery loader tests run
// standalone without a live Postgres instance.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A bare ":memory:" database lives only as long as its one
	// connection; capping the pool at a single connection keeps every
	// query in this test on that same connection instead of each
	// silently getting its own empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	repo, err := New(db, sqlDB, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestRepository_InsertOrderIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	order := matchengine.Order{
		OrderID: 1, UserID: 9, Price: 100, Quantity: 5,
		Side: matchengine.Buy, Exchange: "BTC_USD", CreatedAt: time.Now(),
	}
	require.NoError(t, repo.InsertOrder(ctx, order))
	require.NoError(t, repo.InsertOrder(ctx, order)) // duplicate primary key, no-op

	orders, err := repo.GetOrders(ctx, []matchengine.OrderID{1}, "BTC_USD")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, matchengine.UserID(9), orders[0].UserID)
}

func TestRepository_LastOrderAndTradeIDsTrackPerMarketMax(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, found, err := repo.GetLastOrderID(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 1, Exchange: "BTC_USD", Price: 1, Quantity: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 5, Exchange: "BTC_USD", Price: 1, Quantity: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 2, Exchange: "ETH_USD", Price: 1, Quantity: 1, CreatedAt: time.Now()}))

	last, found, err := repo.GetLastOrderID(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, matchengine.OrderID(5), last)
}

func TestRepository_InsertTradesRemovesCompletedPendingMarkers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	buy := matchengine.Order{OrderID: 10, Exchange: "BTC_USD", UserID: 1, Price: 100, Quantity: 2, Side: matchengine.Buy, CreatedAt: time.Now()}
	sell := matchengine.Order{OrderID: 11, Exchange: "BTC_USD", UserID: 2, Price: 100, Quantity: 2, Side: matchengine.Sell, CreatedAt: time.Now()}
	require.NoError(t, repo.InsertOrder(ctx, buy))
	require.NoError(t, repo.InsertOrder(ctx, sell))
	require.NoError(t, repo.InsertPendingMarker(ctx, 10, "BTC_USD"))
	require.NoError(t, repo.InsertPendingMarker(ctx, 11, "BTC_USD"))

	trade := matchengine.Trade{TradeID: 1, Exchange: "BTC_USD", BuyOrderID: 10, SellOrderID: 11, Price: 100, Quantity: 2, CreatedAt: time.Now()}
	require.NoError(t, repo.InsertTrades(ctx, "BTC_USD", []matchengine.Trade{trade}, []matchengine.OrderID{10, 11}))

	pending, err := repo.GetPendingOrderIDs(ctx, "BTC_USD")
	require.NoError(t, err)
	assert.Empty(t, pending)

	trades, err := repo.GetOrderTrades(ctx, 10, "BTC_USD")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, matchengine.OrderID(11), trades[0].SellOrderID)
}

func TestRepository_GetOrderUser_NotFoundIsFalseNotError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, found, err := repo.GetOrderUser(ctx, 999, "BTC_USD")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_InsertCancellationIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 3, Exchange: "BTC_USD", Price: 1, Quantity: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.InsertCancellation(ctx, "BTC_USD", 3))
	require.NoError(t, repo.InsertCancellation(ctx, "BTC_USD", 3))
}

func TestRepository_GetUserOrders_ScopedToMarketAndUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 1, Exchange: "BTC_USD", UserID: 7, Price: 1, Quantity: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 2, Exchange: "BTC_USD", UserID: 8, Price: 1, Quantity: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.InsertOrder(ctx, matchengine.Order{OrderID: 3, Exchange: "ETH_USD", UserID: 7, Price: 1, Quantity: 1, CreatedAt: time.Now()}))

	ids, err := repo.GetUserOrders(ctx, 7, "BTC_USD")
	require.NoError(t, err)
	assert.Equal(t, []matchengine.OrderID{1}, ids)
}
