package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/venue/internal/domain"
)

// Matcher runs matching passes against a security's book. It is
// stateless apart from its clock and id source, so one Matcher serves
// every security.
type Matcher struct {
	now     func() time.Time
	tradeID func() string
}

// NewMatcher creates a Matcher that stamps trades with the wall clock
// and random UUIDs.
func NewMatcher() *Matcher {
	return &Matcher{
		now:     time.Now,
		tradeID: func() string { return uuid.New().String() },
	}
}

// restingUndo records a resting order's state before one match step.
type restingUndo struct {
	order  *domain.Order
	before domain.Order
}

// pass accumulates everything one Execute call must be able to undo.
type pass struct {
	sec      *Security
	order    *domain.Order
	before   domain.Order
	sequence uint64
	trades   []*domain.Trade
	undo     []restingUndo
}

// Execute matches order against the opposite side of sec's book.
// clearingPrice is zero in continuous trading; during an auction
// opening every trade executes at clearingPrice. The caller must hold
// the security lock.
//
// A rejected pass leaves the book, the ledgers and the market price
// exactly as they were before the call.
func (m *Matcher) Execute(sec *Security, order *domain.Order, clearingPrice int64) *domain.MatchResult {
	book := sec.book

	// Step 1: Admission.
	if order.Kind == domain.KindStopLimit && order.Side == domain.SideBuy &&
		!order.Broker.HasEnoughCredit(order.Value()) {
		return domain.Rejected(domain.OutcomeNotEnoughCredit)
	}
	if order.Side == domain.SideSell && !sec.hasEnoughPositions(order.Shareholder, order.Quantity) {
		return domain.Rejected(domain.OutcomeNotEnoughPositions)
	}

	// Step 2: Activation gate.
	if order.Kind == domain.KindStopLimit {
		if !order.IsActivatable(sec.marketPrice) {
			if order.Side == domain.SideBuy && !order.Broker.Reserve(order.Value()) {
				return domain.Rejected(domain.OutcomeNotEnoughCredit)
			}
			book.Enqueue(order)
			return &domain.MatchResult{Outcome: domain.OutcomeNotActivatable, Remainder: order}
		}
		order.ConvertToLimit()
	}

	p := &pass{sec: sec, order: order, before: *order, sequence: book.sequence}

	// Step 3: Drain loop.
	for order.Quantity > 0 {
		resting := book.MatchWithFirst(order)
		if resting == nil {
			break
		}
		price := resting.Price
		if clearingPrice > 0 {
			if !acceptsPrice(order, clearingPrice) || !acceptsPrice(resting, clearingPrice) {
				break
			}
			price = clearingPrice
		}

		quantity := min(order.Quantity, resting.OpenQuantity())
		trade := &domain.Trade{ISIN: sec.isin, Price: price, Quantity: quantity}
		if order.Side == domain.SideBuy {
			trade.Buy, trade.Sell = order.Snapshot(), resting.Snapshot()
			if !order.Broker.Reserve(trade.Value()) {
				m.rollback(p)
				return domain.Rejected(domain.OutcomeNotEnoughCredit)
			}
		} else {
			trade.Buy, trade.Sell = resting.Snapshot(), order.Snapshot()
		}
		trade.Sell.Broker.IncreaseCredit(trade.Value())
		p.trades = append(p.trades, trade)
		p.undo = append(p.undo, restingUndo{order: resting, before: *resting})

		order.DecreaseQuantity(quantity)
		resting.DecreaseQuantity(quantity)
		if resting.OpenQuantity() == 0 {
			book.Remove(resting)
			if resting.Kind == domain.KindIceberg && resting.Quantity > 0 {
				resting.Replenish()
				book.Requeue(resting)
			}
		}
	}

	// Step 4: Minimum-fill check.
	if order.Status == domain.StatusNew &&
		order.InitialQuantity-order.Quantity < order.MinimumExecutionQuantity {
		m.rollback(p)
		return domain.Rejected(domain.OutcomeMinimumQuantityNotSatisfied)
	}

	// Step 5: Queue remainder.
	if order.Quantity > 0 {
		order.Replenish()
		if order.Side == domain.SideBuy && !order.Broker.Reserve(order.Value()) {
			m.rollback(p)
			return domain.Rejected(domain.OutcomeNotEnoughCredit)
		}
		book.Enqueue(order)
	}

	// Step 6: Commit.
	executedAt := m.now()
	for _, t := range p.trades {
		t.TradeID = m.tradeID()
		t.ExecutedAt = executedAt
		t.Buy.Shareholder.IncPosition(sec.isin, t.Quantity)
		t.Sell.Shareholder.DecPosition(sec.isin, t.Quantity)
	}
	if n := len(p.trades); n > 0 {
		sec.marketPrice = p.trades[n-1].Price
	}
	return domain.Executed(order, p.trades)
}

// rollback undoes every credit movement and book mutation of a pass, in
// reverse order.
func (m *Matcher) rollback(p *pass) {
	book := p.sec.book

	if p.order.Side == domain.SideBuy {
		var paid int64
		for _, t := range p.trades {
			paid += t.Value()
		}
		p.order.Broker.IncreaseCredit(paid)
	}
	for i := len(p.trades) - 1; i >= 0; i-- {
		t := p.trades[i]
		t.Sell.Broker.DecreaseCredit(t.Value())
	}

	for i := len(p.undo) - 1; i >= 0; i-- {
		u := p.undo[i]
		book.Remove(u.order)
		*u.order = u.before
		book.Restore(u.order)
	}
	book.sequence = p.sequence
	*p.order = p.before
}

// acceptsPrice reports whether o is willing to trade at price.
func acceptsPrice(o *domain.Order, price int64) bool {
	if o.Side == domain.SideBuy {
		return o.Price >= price
	}
	return o.Price <= price
}

// OpenAuction uncrosses the book at the opening price after an auction
// period. Buy orders are popped from the head and executed at the
// clearing price until the book is exhausted or the same order comes
// back unchanged, which means nothing else can trade.
func (m *Matcher) OpenAuction(sec *Security) []*domain.Trade {
	price := sec.OpeningPrice()
	if price == 0 {
		return nil
	}

	var trades []*domain.Trade
	var lastID, lastQuantity int64
	seen := false
	for {
		order := sec.book.PopHead(domain.SideBuy)
		if order == nil {
			break
		}
		if seen && order.OrderID == lastID && order.Quantity == lastQuantity {
			sec.book.Restore(order)
			break
		}
		seen, lastID, lastQuantity = true, order.OrderID, order.Quantity

		// The queued order reserved its full value; it is re-reserved for
		// whatever remains after execution.
		order.Broker.IncreaseCredit(order.Value())
		result := m.Execute(sec, order, price)
		if result.Outcome.IsError() {
			order.Broker.DecreaseCredit(order.Value())
			sec.book.Restore(order)
			continue
		}
		trades = append(trades, result.Trades...)
	}
	return trades
}
