// Package memstore is an in-memory matchengine.Store used by unit
// tests that need a Store without a database — the persistence
// coordinator and recovery loader's control flow, not SQL, is what
// those tests exercise.
package memstore

import (
	"context"
	"sync"

	"github.com/rustexchange/matchd/internal/matchengine"
)

type marketKey struct {
	market  string
	orderID matchengine.OrderID
}

// Store is a goroutine-safe in-memory implementation of
// matchengine.Store.
type Store struct {
	mu sync.Mutex

	orders    map[marketKey]matchengine.Order
	trades    map[string][]matchengine.Trade
	pending   map[marketKey]struct{}
	cancelled map[marketKey]bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		orders:    make(map[marketKey]matchengine.Order),
		trades:    make(map[string][]matchengine.Trade),
		pending:   make(map[marketKey]struct{}),
		cancelled: make(map[marketKey]bool),
	}
}

func (s *Store) GetLastOrderID(_ context.Context, market string) (matchengine.OrderID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max matchengine.OrderID = -1
	found := false
	for k, o := range s.orders {
		if k.market != market {
			continue
		}
		if !found || o.OrderID > max {
			max = o.OrderID
			found = true
		}
	}
	return max, found, nil
}

func (s *Store) GetLastTradeID(_ context.Context, market string) (matchengine.TradeID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max matchengine.TradeID = -1
	found := false
	for _, t := range s.trades[market] {
		if !found || t.TradeID > max {
			max = t.TradeID
			found = true
		}
	}
	return max, found, nil
}

func (s *Store) GetPendingOrderIDs(_ context.Context, market string) ([]matchengine.OrderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []matchengine.OrderID
	for k := range s.pending {
		if k.market == market {
			out = append(out, k.orderID)
		}
	}
	return out, nil
}

func (s *Store) GetOrders(_ context.Context, ids []matchengine.OrderID, market string) ([]matchengine.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]matchengine.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[marketKey{market, id}]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) GetOrderTrades(_ context.Context, orderID matchengine.OrderID, market string) ([]matchengine.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []matchengine.Trade
	for _, t := range s.trades[market] {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) InsertOrder(_ context.Context, o matchengine.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := marketKey{o.Exchange, o.OrderID}
	if _, exists := s.orders[key]; exists {
		return nil // idempotent
	}
	s.orders[key] = o
	return nil
}

func (s *Store) InsertPendingMarker(_ context.Context, orderID matchengine.OrderID, market string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[marketKey{market, orderID}] = struct{}{}
	return nil
}

func (s *Store) InsertTrades(_ context.Context, market string, trades []matchengine.Trade, completed []matchengine.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[market] = append(s.trades[market], trades...)
	for _, id := range completed {
		delete(s.pending, marketKey{market, id})
	}
	return nil
}

func (s *Store) InsertCancellation(_ context.Context, market string, orderID matchengine.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[marketKey{market, orderID}] = true
	delete(s.pending, marketKey{market, orderID})
	return nil
}

func (s *Store) GetUserOrders(_ context.Context, userID matchengine.UserID, market string) ([]matchengine.OrderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []matchengine.OrderID
	for k, o := range s.orders {
		if k.market == market && o.UserID == userID {
			out = append(out, o.OrderID)
		}
	}
	return out, nil
}

func (s *Store) GetOrderUser(_ context.Context, orderID matchengine.OrderID, market string) (matchengine.UserID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[marketKey{market, orderID}]
	if !ok {
		return 0, false, nil
	}
	return o.UserID, true, nil
}

var _ matchengine.Store = (*Store)(nil)
