package engine

import (
	"github.com/efreitasn/venue/internal/domain"
	"github.com/google/btree"
)

// bookEntry is a single order in one of the four queues. Key is the
// limit price for live queues and the stop price for stop queues; it is
// captured at insertion so later mutation of the order cannot corrupt
// the tree ordering.
type bookEntry struct {
	Key      int64
	Sequence uint64
	Order    *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// buyLess orders the buy queue: price descending, then arrival.
// Min() is the best bid.
func buyLess(a, b bookEntry) bool {
	if a.Key != b.Key {
		return a.Key > b.Key
	}
	return a.Sequence < b.Sequence
}

// sellLess orders the sell queue: price ascending, then arrival.
func sellLess(a, b bookEntry) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Sequence < b.Sequence
}

// stopBuyLess puts the lowest stop price first: it is the first to
// trigger as the market rises.
func stopBuyLess(a, b bookEntry) bool {
	return sellLess(a, b)
}

// stopSellLess puts the highest stop price first.
func stopSellLess(a, b bookEntry) bool {
	return buyLess(a, b)
}

// OrderBook holds the live and pending-stop queues of one security.
// It is not safe for concurrent use; the owning Security serializes
// access.
type OrderBook struct {
	isin      string
	buys      *btree.BTreeG[bookEntry]
	sells     *btree.BTreeG[bookEntry]
	stopBuys  *btree.BTreeG[bookEntry]
	stopSells *btree.BTreeG[bookEntry]
	index     map[domain.Side]map[int64]bookEntry // side → order_id → entry
	sequence  uint64
}

// NewOrderBook creates an empty order book for the given security.
func NewOrderBook(isin string) *OrderBook {
	const degree = 32
	return &OrderBook{
		isin:      isin,
		buys:      btree.NewG[bookEntry](degree, buyLess),
		sells:     btree.NewG[bookEntry](degree, sellLess),
		stopBuys:  btree.NewG[bookEntry](degree, stopBuyLess),
		stopSells: btree.NewG[bookEntry](degree, stopSellLess),
		index: map[domain.Side]map[int64]bookEntry{
			domain.SideBuy:  make(map[int64]bookEntry),
			domain.SideSell: make(map[int64]bookEntry),
		},
	}
}

func (ob *OrderBook) liveQueue(side domain.Side) *btree.BTreeG[bookEntry] {
	if side == domain.SideBuy {
		return ob.buys
	}
	return ob.sells
}

func (ob *OrderBook) stopQueue(side domain.Side) *btree.BTreeG[bookEntry] {
	if side == domain.SideBuy {
		return ob.stopBuys
	}
	return ob.stopSells
}

func (ob *OrderBook) queueFor(o *domain.Order) *btree.BTreeG[bookEntry] {
	if o.Kind == domain.KindStopLimit {
		return ob.stopQueue(o.Side)
	}
	return ob.liveQueue(o.Side)
}

func entryFor(o *domain.Order) bookEntry {
	key := o.Price
	if o.Kind == domain.KindStopLimit {
		key = o.StopPrice
	}
	return bookEntry{Key: key, Sequence: o.Sequence, Order: o}
}

// Enqueue inserts the order into its queue and marks it QUEUED. An
// order without a sequence goes to the back of its price level; one that
// already has a sequence returns to the position that sequence denotes.
func (ob *OrderBook) Enqueue(o *domain.Order) {
	if o.Sequence == 0 {
		ob.sequence++
		o.Sequence = ob.sequence
	}
	o.Status = domain.StatusQueued
	ob.insert(o)
}

// Requeue moves the order to the back of its price level. The order may
// or may not be queued already.
func (ob *OrderBook) Requeue(o *domain.Order) {
	ob.Remove(o)
	o.Sequence = 0
	ob.Enqueue(o)
}

// Restore reinserts an order at the position recorded in its sequence
// without touching its status. Used to undo removals.
func (ob *OrderBook) Restore(o *domain.Order) {
	ob.insert(o)
}

func (ob *OrderBook) insert(o *domain.Order) {
	entry := entryFor(o)
	ob.queueFor(o).ReplaceOrInsert(entry)
	ob.index[o.Side][o.OrderID] = entry
}

// FindByOrderID returns the order with the given id on the live or stop
// queue of side, or nil.
func (ob *OrderBook) FindByOrderID(side domain.Side, orderID int64) *domain.Order {
	entry, ok := ob.index[side][orderID]
	if !ok {
		return nil
	}
	return entry.Order
}

// RemoveByOrderID removes the order from whichever queue of side holds
// it and reports whether it was found.
func (ob *OrderBook) RemoveByOrderID(side domain.Side, orderID int64) bool {
	entry, ok := ob.index[side][orderID]
	if !ok {
		return false
	}
	delete(ob.index[side], orderID)
	// Delete is a no-op on the queue that does not hold the entry.
	ob.liveQueue(side).Delete(entry)
	ob.stopQueue(side).Delete(entry)
	return true
}

// Remove removes o from the book if present.
func (ob *OrderBook) Remove(o *domain.Order) bool {
	return ob.RemoveByOrderID(o.Side, o.OrderID)
}

// Head returns the first order of the live queue of side without
// removing it.
func (ob *OrderBook) Head(side domain.Side) *domain.Order {
	entry, ok := ob.liveQueue(side).Min()
	if !ok {
		return nil
	}
	return entry.Order
}

// PopHead removes and returns the first order of the live queue of side.
func (ob *OrderBook) PopHead(side domain.Side) *domain.Order {
	head := ob.Head(side)
	if head == nil {
		return nil
	}
	ob.Remove(head)
	return head
}

// MatchWithFirst returns the head of the opposite live queue if its
// price is compatible with incoming, else nil.
func (ob *OrderBook) MatchWithFirst(incoming *domain.Order) *domain.Order {
	head := ob.Head(incoming.Side.Opposite())
	if head == nil {
		return nil
	}
	if incoming.Side == domain.SideBuy && incoming.Price >= head.Price {
		return head
	}
	if incoming.Side == domain.SideSell && head.Price >= incoming.Price {
		return head
	}
	return nil
}

// ActivateFirst pops the head of the stop queue of side if its trigger
// holds at marketPrice.
func (ob *OrderBook) ActivateFirst(side domain.Side, marketPrice int64) *domain.Order {
	entry, ok := ob.stopQueue(side).Min()
	if !ok || !entry.Order.IsActivatable(marketPrice) {
		return nil
	}
	ob.Remove(entry.Order)
	return entry.Order
}

// TotalSellQuantityByShareholder sums the open quantity the shareholder
// has queued for sale, pending stop orders included.
func (ob *OrderBook) TotalSellQuantityByShareholder(sh *domain.Shareholder) int64 {
	var total int64
	sum := func(e bookEntry) bool {
		if e.Order.Shareholder == sh {
			total += e.Order.Quantity
		}
		return true
	}
	ob.sells.Ascend(sum)
	ob.stopSells.Ascend(sum)
	return total
}

// TotalTradableQuantity sums the full quantity of live orders on side
// that would trade at price: buys limited at or above it, sells at or
// below it.
func (ob *OrderBook) TotalTradableQuantity(price int64, side domain.Side) int64 {
	var total int64
	ob.liveQueue(side).Ascend(func(e bookEntry) bool {
		if side == domain.SideBuy && e.Key < price || side == domain.SideSell && e.Key > price {
			return false
		}
		total += e.Order.Quantity
		return true
	})
	return total
}

// Prices returns the distinct limit prices on both live queues.
func (ob *OrderBook) Prices() []int64 {
	seen := make(map[int64]struct{})
	var prices []int64
	collect := func(e bookEntry) bool {
		if _, ok := seen[e.Key]; !ok {
			seen[e.Key] = struct{}{}
			prices = append(prices, e.Key)
		}
		return true
	}
	ob.buys.Ascend(collect)
	ob.sells.Ascend(collect)
	return prices
}

// Walk iterates the live queue of side in priority order until fn
// returns false.
func (ob *OrderBook) Walk(side domain.Side, fn func(*domain.Order) bool) {
	ob.liveQueue(side).Ascend(func(e bookEntry) bool {
		return fn(e.Order)
	})
}

// WalkStops iterates the stop queue of side in trigger order.
func (ob *OrderBook) WalkStops(side domain.Side, fn func(*domain.Order) bool) {
	ob.stopQueue(side).Ascend(func(e bookEntry) bool {
		return fn(e.Order)
	})
}

// Levels returns up to n aggregated price levels of the live queue of
// side, best price first. Iceberg orders contribute their displayed
// quantity.
func (ob *OrderBook) Levels(side domain.Side, n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	ob.liveQueue(side).Ascend(func(e bookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == e.Key {
			levels[len(levels)-1].TotalQuantity += e.Order.OpenQuantity()
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         e.Key,
			TotalQuantity: e.Order.OpenQuantity(),
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// Len returns the number of orders on the live queue of side.
func (ob *OrderBook) Len(side domain.Side) int {
	return ob.liveQueue(side).Len()
}

// StopLen returns the number of pending stop orders on side.
func (ob *OrderBook) StopLen(side domain.Side) int {
	return ob.stopQueue(side).Len()
}
