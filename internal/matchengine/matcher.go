package matchengine

import "time"

// MatchResult is the plain-data output of one admission: the trades
// produced, in emission order, and the ids (taker and/or maker) that
// are now fully filled and must leave the Pending Set.
type MatchResult struct {
	Trades    []Trade
	Completed []OrderID
}

// nowFn is overridable in tests; recovery never depends on it (§9).
var nowFn = time.Now

// Match runs the synchronous matching algorithm for a freshly admitted
// order (§4.2). It never touches persistence — it returns plain data
// and mutates only the heaps/pending-set it owns on b.
//
// The buy path locks only the ask heap (plus the pending set briefly);
// the sell path locks only the bid heap. This is the book's
// linearisation point (§5): the order becomes observable to others the
// instant this call acquires the opposing heap's lock.
func (b *Book) Match(taker *Order) MatchResult {
	b.markPending(taker.OrderID)

	if taker.Side == Buy {
		return b.matchBuy(taker)
	}
	return b.matchSell(taker)
}

func (b *Book) matchBuy(buy *Order) MatchResult {
	var res MatchResult

	b.asksMu.Lock()

	for {
		top := b.asks.peek()
		if top == nil {
			break
		}
		if !b.IsPending(top.OrderID) {
			// Ghost top: cancelled since it was pushed. Lazy sweep.
			b.asks.popTop()
			continue
		}
		if top.Price > buy.Price {
			// Remaining tops only get worse from here.
			break
		}

		sell := b.asks.popTop()
		qty := min(buy.Quantity, sell.Quantity)

		res.Trades = append(res.Trades, Trade{
			TradeID:     b.AllocateTradeID(),
			Exchange:    buy.Exchange,
			BuyOrderID:  buy.OrderID,
			SellOrderID: sell.OrderID,
			Price:       sell.Price, // resting (maker) price
			Quantity:    qty,
			CreatedAt:   nowFn(),
		})

		buy.Quantity -= qty
		sell.Quantity -= qty

		if sell.Quantity > Epsilon {
			b.asks.pushOrder(sell)
		} else {
			res.Completed = append(res.Completed, sell.OrderID)
			b.unmarkPending(sell.OrderID)
		}

		if buy.Quantity <= Epsilon {
			res.Completed = append(res.Completed, buy.OrderID)
			b.unmarkPending(buy.OrderID)
			b.asksMu.Unlock()
			return res
		}
	}

	// asksMu is released before bidsMu is ever requested: two locks are
	// never held simultaneously (§5), so this can't invert against a
	// concurrent matchSell holding bidsMu and wanting asksMu.
	b.asksMu.Unlock()

	if buy.Quantity > Epsilon {
		b.bidsMu.Lock()
		b.bids.pushOrder(buy)
		b.bidsMu.Unlock()
	}
	return res
}

func (b *Book) matchSell(sell *Order) MatchResult {
	var res MatchResult

	b.bidsMu.Lock()

	for {
		top := b.bids.peek()
		if top == nil {
			break
		}
		if !b.IsPending(top.OrderID) {
			b.bids.popTop()
			continue
		}
		if top.Price < sell.Price {
			break
		}

		buy := b.bids.popTop()
		qty := min(sell.Quantity, buy.Quantity)

		res.Trades = append(res.Trades, Trade{
			TradeID:     b.AllocateTradeID(),
			Exchange:    sell.Exchange,
			BuyOrderID:  buy.OrderID,
			SellOrderID: sell.OrderID,
			Price:       buy.Price, // resting (maker) price
			Quantity:    qty,
			CreatedAt:   nowFn(),
		})

		sell.Quantity -= qty
		buy.Quantity -= qty

		if buy.Quantity > Epsilon {
			b.bids.pushOrder(buy)
		} else {
			res.Completed = append(res.Completed, buy.OrderID)
			b.unmarkPending(buy.OrderID)
		}

		if sell.Quantity <= Epsilon {
			res.Completed = append(res.Completed, sell.OrderID)
			b.unmarkPending(sell.OrderID)
			b.bidsMu.Unlock()
			return res
		}
	}

	// bidsMu is released before asksMu is ever requested, for the same
	// reason as matchBuy's mirrored release above.
	b.bidsMu.Unlock()

	if sell.Quantity > Epsilon {
		b.asksMu.Lock()
		b.asks.pushOrder(sell)
		b.asksMu.Unlock()
	}
	return res
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
