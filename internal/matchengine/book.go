package matchengine

import (
	"sync"
	"sync/atomic"
)

// Book owns one market's bid/ask heaps, the pending set, and the two
// monotonic id allocators. Per §5, the bid heap, ask heap, and pending
// set are three independently-locked resources: matching a buy locks
// only the ask heap (and the pending set briefly); matching a sell
// locks only the bid heap, then the ask heap only after releasing it,
// to push a non-fully-crossing residual. Two locks are never held
// simultaneously — Depth takes bidsMu, releases it, then takes asksMu,
// rather than holding both at once.
type Book struct {
	Symbol string

	bidsMu sync.Mutex
	bids   *orderHeap

	asksMu sync.Mutex
	asks   *orderHeap

	pendingMu sync.Mutex
	pending   map[OrderID]struct{}

	nextOrderID int64 // atomic, post-increment
	nextTradeID int64 // atomic, post-increment
}

// NewBook constructs an empty book for symbol. lastOrderID/lastTradeID
// are the highest ids already persisted for this market (or -1 if the
// store is empty), per §4.3 — allocation is seeded to value+1 so a
// fresh install's first id is 0.
func NewBook(symbol string, lastOrderID OrderID, lastTradeID TradeID) *Book {
	return &Book{
		Symbol:      symbol,
		bids:        newOrderHeap(Buy),
		asks:        newOrderHeap(Sell),
		pending:     make(map[OrderID]struct{}),
		nextOrderID: int64(lastOrderID) + 1,
		nextTradeID: int64(lastTradeID) + 1,
	}
}

// AllocateOrderID returns the next monotonic order id. Atomic;
// producing duplicate ids is a fatal invariant violation (§4.1).
func (b *Book) AllocateOrderID() OrderID {
	return OrderID(atomic.AddInt64(&b.nextOrderID, 1) - 1)
}

// AllocateTradeID returns the next monotonic trade id.
func (b *Book) AllocateTradeID() TradeID {
	return TradeID(atomic.AddInt64(&b.nextTradeID, 1) - 1)
}

// IsPending reports whether id is currently on the book.
func (b *Book) IsPending(id OrderID) bool {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// markPending records id as open. Called once on admission.
func (b *Book) markPending(id OrderID) {
	b.pendingMu.Lock()
	b.pending[id] = struct{}{}
	b.pendingMu.Unlock()
}

// unmarkPending removes id from the pending set without touching the
// heap — the heap entry, if any, is swept lazily at match time
// (§4.1 rationale: eager heap delete is O(n) on a binary heap).
func (b *Book) unmarkPending(id OrderID) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}

// TryCancel removes id from the Pending Set and reports whether it
// was present. Idempotent: a second call for the same id returns
// false (§8.5).
func (b *Book) TryCancel(id OrderID) bool {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return false
	}
	delete(b.pending, id)
	return true
}

// PendingIDs returns a snapshot of the ids currently open on the book.
func (b *Book) PendingIDs() []OrderID {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	out := make([]OrderID, 0, len(b.pending))
	for id := range b.pending {
		out = append(out, id)
	}
	return out
}

// PendingCount is a cheap gauge source for metrics.
func (b *Book) PendingCount() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// Depth returns aggregated price levels for both sides, best-first,
// limited to levels entries per side. Diagnostic only; never consumed
// by the matcher.
func (b *Book) Depth(levels int) (bids, asks []PriceLevel) {
	b.bidsMu.Lock()
	bidLevels := b.bids.levels()
	b.bidsMu.Unlock()

	b.asksMu.Lock()
	askLevels := b.asks.levels()
	b.asksMu.Unlock()

	if len(bidLevels) > levels {
		bidLevels = bidLevels[:levels]
	}
	if len(askLevels) > levels {
		askLevels = askLevels[:levels]
	}
	return bidLevels, askLevels
}

// SeedOrder places a resurrected order directly onto the appropriate
// heap and pending set, used only by the Recovery Loader — it bypasses
// the matcher entirely, since recovered orders are already known-open
// remainders, not fresh admissions.
func (b *Book) SeedOrder(o *Order) {
	b.markPending(o.OrderID)
	if o.Side == Buy {
		b.bidsMu.Lock()
		b.bids.pushOrder(o)
		b.bidsMu.Unlock()
	} else {
		b.asksMu.Lock()
		b.asks.pushOrder(o)
		b.asksMu.Unlock()
	}
}
