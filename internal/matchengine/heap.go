package matchengine

import "container/heap"

// orderHeap is a container/heap-backed priority queue of *Order,
// ordered per the table in spec §4.1: price first, then order id as
// the deterministic tie-break (never wall-clock — ids are monotonic
// and reproducible from the store at recovery time).
//
// side == Buy sorts highest price first, lowest id first among ties.
// side == Sell sorts lowest price first, lowest id first among ties.
type orderHeap struct {
	orders []*Order
	side   OrderSide
}

func newOrderHeap(side OrderSide) *orderHeap {
	h := &orderHeap{side: side}
	heap.Init(h)
	return h
}

func (h *orderHeap) Len() int { return len(h.orders) }

func (h *orderHeap) Less(i, j int) bool {
	a, b := h.orders[i], h.orders[j]
	if a.Price != b.Price {
		if h.side == Buy {
			return a.Price > b.Price
		}
		return a.Price < b.Price
	}
	return a.OrderID < b.OrderID
}

func (h *orderHeap) Swap(i, j int) { h.orders[i], h.orders[j] = h.orders[j], h.orders[i] }

func (h *orderHeap) Push(x any) { h.orders = append(h.orders, x.(*Order)) }

func (h *orderHeap) Pop() any {
	old := h.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	return o
}

// peek returns the top order without removing it, or nil if empty.
func (h *orderHeap) peek() *Order {
	if len(h.orders) == 0 {
		return nil
	}
	return h.orders[0]
}

// popTop removes and returns the top order, or nil if empty.
func (h *orderHeap) popTop() *Order {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Order)
}

func (h *orderHeap) pushOrder(o *Order) { heap.Push(h, o) }

// levels aggregates resting orders by price for depth snapshots,
// sorted best-first for the heap's side.
func (h *orderHeap) levels() []PriceLevel {
	agg := make(map[int64]*PriceLevel)
	for _, o := range h.orders {
		if lvl, ok := agg[o.Price]; ok {
			lvl.Quantity += o.Quantity
			lvl.Count++
		} else {
			agg[o.Price] = &PriceLevel{Price: o.Price, Quantity: o.Quantity, Count: 1}
		}
	}
	out := make([]PriceLevel, 0, len(agg))
	for _, lvl := range agg {
		out = append(out, *lvl)
	}
	for i := 0; i < len(out)-1; i++ {
		for j := i + 1; j < len(out); j++ {
			less := out[j].Price < out[i].Price
			if h.side == Buy {
				less = out[j].Price > out[i].Price
			}
			if less {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// PriceLevel is an aggregated view of resting quantity at one price,
// used for depth/diagnostic snapshots only — not part of the matcher.
type PriceLevel struct {
	Price    int64
	Quantity float64
	Count    int
}
