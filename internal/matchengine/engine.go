package matchengine

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustexchange/matchd/internal/xerrors"
)

// Metrics is the narrow set of observability hooks the engine emits
// into. Implemented by internal/obsv; kept as an interface here so the
// core package has no dependency on the prometheus client library.
type Metrics interface {
	ObserveMatchDuration(market string, d time.Duration)
	IncTrades(market string, n int)
	IncOrders(market string)
	SetPending(market string, n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMatchDuration(string, time.Duration) {}
func (noopMetrics) IncTrades(string, int)                      {}
func (noopMetrics) IncOrders(string)                           {}
func (noopMetrics) SetPending(string, int)                     {}

// Engine is the façade described in spec §2: one instance per market,
// wiring the Book, the Store, and the worker pool that runs the
// synchronous Matcher off the caller's goroutine (§5).
type Engine struct {
	market  string
	book    *Book
	store   Store
	logger  *zap.Logger
	metrics Metrics

	pool    *ants.Pool
	breaker *gobreaker.CircuitBreaker

	// owners memoizes order_id -> user_id for authorization checks
	// (GetOrderProgress, TryDeleteOrder). A miss always falls through
	// to the store, so correctness never depends on this cache.
	owners *cache.Cache
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMetrics attaches a Metrics sink. Defaults to a no-op.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWorkerPoolSize overrides the default worker pool size.
func WithWorkerPoolSize(n int) Option {
	return func(e *Engine) {
		pool, err := ants.NewPool(n, ants.WithNonblocking(false))
		if err == nil {
			e.pool = pool
		}
	}
}

// New constructs an Engine for market, backed by book and store. book
// must already be seeded by the Recovery Loader before requests are
// accepted (§4.5 step 5).
func New(market string, book *Book, store Store, logger *zap.Logger, opts ...Option) *Engine {
	pool, _ := ants.NewPool(64, ants.WithNonblocking(false))
	e := &Engine{
		market:  market,
		book:    book,
		store:   store,
		logger:  logger,
		metrics: noopMetrics{},
		pool:    pool,
		owners:  cache.New(30*time.Minute, 10*time.Minute),
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("store:%s", market),
		MaxRequests: 8,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the worker pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// Market returns the market tag this engine instance owns.
func (e *Engine) Market() string { return e.market }

// InsertOrder implements the Engine RPC surface operation of the same
// name (§6) via the Persistence Coordinator's Phase A/B/C protocol
// (§4.4).
func (e *Engine) InsertOrder(ctx context.Context, userID UserID, co ClientOrder) (OrderID, error) {
	if co.Exchange != e.market {
		return 0, xerrors.UserFacingf("unknown_market", "market %q is not served by this engine (%q)", co.Exchange, e.market)
	}
	if co.Quantity <= Epsilon {
		return 0, xerrors.UserFacingf("invalid_quantity", "quantity must be positive")
	}

	id := e.book.AllocateOrderID()
	order := Order{
		OrderID:   id,
		UserID:    userID,
		Price:     co.Price,
		Quantity:  co.Quantity,
		Side:      co.OrderType,
		Exchange:  e.market,
		CreatedAt: time.Now(),
	}

	// Phase A: optimistic parallel admission. Matching runs on a
	// worker-pool goroutine; the order row and pending marker are
	// written concurrently. Phase B is the join below.
	group, gctx := errgroup.WithContext(ctx)

	var result MatchResult
	group.Go(func() error {
		r, err := e.runMatch(gctx, &order)
		if err != nil {
			return xerrors.MatchServicef("matching failed for order %d: %v", id, err)
		}
		result = r
		return nil
	})
	group.Go(func() error {
		if _, err := e.breaker.Execute(func() (any, error) {
			return nil, e.store.InsertOrder(gctx, order)
		}); err != nil {
			return xerrors.Storef(err, "failed to persist order %d", id)
		}
		return nil
	})
	group.Go(func() error {
		if _, err := e.breaker.Execute(func() (any, error) {
			return nil, e.store.InsertPendingMarker(gctx, id, e.market)
		}); err != nil {
			return xerrors.Storef(err, "failed to persist pending marker for order %d", id)
		}
		return nil
	})

	start := time.Now()
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, xerrors.Timeoutf("insert_order timed out for order %d", id)
		}
		return 0, err
	}
	e.metrics.ObserveMatchDuration(e.market, time.Since(start))
	e.metrics.IncOrders(e.market)
	e.owners.Set(ownerKey(id), userID, cache.DefaultExpiration)

	// Phase C: fire-and-forget trade persistence, logged on error.
	go e.persistTrades(result)

	e.metrics.IncTrades(e.market, len(result.Trades))
	e.metrics.SetPending(e.market, e.book.PendingCount())

	return id, nil
}

// runMatch submits the matcher onto the bounded worker pool (§5: "a
// blocking-capable worker thread spawned for the duration of one
// match") and blocks the calling goroutine until it completes or ctx
// is cancelled.
func (e *Engine) runMatch(ctx context.Context, order *Order) (MatchResult, error) {
	done := make(chan MatchResult, 1)
	if err := e.pool.Submit(func() {
		done <- e.book.Match(order)
	}); err != nil {
		return MatchResult{}, err
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		// The submitted task still runs to completion and mutates the
		// book correctly; we simply stop waiting for it here. The
		// book's invariants hold regardless of whether the caller is
		// still listening.
		return MatchResult{}, ctx.Err()
	}
}

func (e *Engine) persistTrades(result MatchResult) {
	if len(result.Trades) == 0 && len(result.Completed) == 0 {
		return
	}
	ctx := context.Background()
	if _, err := e.breaker.Execute(func() (any, error) {
		return nil, e.store.InsertTrades(ctx, e.market, result.Trades, result.Completed)
	}); err != nil {
		e.logger.Error("failed to persist trades",
			zap.String("market", e.market),
			zap.Int("trade_count", len(result.Trades)),
			zap.Error(err))
	}
	for _, id := range result.Completed {
		e.owners.Delete(ownerKey(id))
	}
}

// GetUserOrders implements the Engine RPC surface operation (§6).
func (e *Engine) GetUserOrders(ctx context.Context, userID UserID) ([]OrderID, error) {
	ids, err := e.store.GetUserOrders(ctx, userID, e.market)
	if err != nil {
		return nil, xerrors.Storef(err, "failed to list orders for user %d", userID)
	}
	return ids, nil
}

// GetOrderProgress implements the Engine RPC surface operation (§6).
// Authorization: caller's user_id must equal the order's user_id.
func (e *Engine) GetOrderProgress(ctx context.Context, userID UserID, orderID OrderID) (bool, float64, error) {
	owner, found, err := e.ownerOf(ctx, orderID)
	if err != nil {
		return false, 0, err
	}
	if !found {
		return false, 0, xerrors.UserFacingf("not_found", "order %d not found", orderID)
	}
	if owner != userID {
		return false, 0, xerrors.Forbiddenf("user %d does not own order %d", userID, orderID)
	}

	orders, err := e.store.GetOrders(ctx, []OrderID{orderID}, e.market)
	if err != nil {
		return false, 0, xerrors.Storef(err, "failed to fetch order %d", orderID)
	}
	if len(orders) == 0 {
		return false, 0, xerrors.UserFacingf("not_found", "order %d not found", orderID)
	}
	trades, err := e.store.GetOrderTrades(ctx, orderID, e.market)
	if err != nil {
		return false, 0, xerrors.Storef(err, "failed to fetch trades for order %d", orderID)
	}

	remaining := orders[0].Quantity
	for _, t := range trades {
		remaining -= t.Quantity
	}
	return e.book.IsPending(orderID), remaining, nil
}

// TryDeleteOrder implements the Engine RPC surface operation (§6):
// synchronous cancel. The client is told success only after both the
// book removal and the cancellation row succeed.
func (e *Engine) TryDeleteOrder(ctx context.Context, userID UserID, orderID OrderID) (bool, error) {
	owner, found, err := e.ownerOf(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, xerrors.UserFacingf("not_found", "order %d not found", orderID)
	}
	if owner != userID {
		return false, xerrors.Forbiddenf("user %d does not own order %d", userID, orderID)
	}

	removed := e.book.TryCancel(orderID)
	if !removed {
		return false, nil
	}
	if _, err := e.breaker.Execute(func() (any, error) {
		return nil, e.store.InsertCancellation(ctx, e.market, orderID)
	}); err != nil {
		return false, xerrors.Storef(err, "failed to persist cancellation for order %d", orderID)
	}
	e.owners.Delete(ownerKey(orderID))
	e.metrics.SetPending(e.market, e.book.PendingCount())
	return true, nil
}

func (e *Engine) ownerOf(ctx context.Context, orderID OrderID) (UserID, bool, error) {
	if v, ok := e.owners.Get(ownerKey(orderID)); ok {
		return v.(UserID), true, nil
	}
	owner, found, err := e.store.GetOrderUser(ctx, orderID, e.market)
	if err != nil {
		return 0, false, xerrors.Storef(err, "failed to fetch owner of order %d", orderID)
	}
	if found {
		e.owners.Set(ownerKey(orderID), owner, cache.DefaultExpiration)
	}
	return owner, found, nil
}

func ownerKey(id OrderID) string { return fmt.Sprintf("order:%d", id) }
