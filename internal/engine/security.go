package engine

import (
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// Security is the per-instrument state machine: it owns the order book,
// the market price and the matching state, and is the entry point for
// every order command.
//
// Security methods do not lock. Callers hold Lock for the whole command,
// activation cascade included, and RLock for reads.
type Security struct {
	mu sync.RWMutex

	isin        string
	tickSize    int64
	lotSize     int64
	book        *OrderBook
	matcher     *Matcher
	marketPrice int64
	state       domain.MatchingState
}

// NewSecurity creates a security in continuous trading with an empty book.
func NewSecurity(isin string, tickSize, lotSize int64, matcher *Matcher) *Security {
	return &Security{
		isin:     isin,
		tickSize: tickSize,
		lotSize:  lotSize,
		book:     NewOrderBook(isin),
		matcher:  matcher,
		state:    domain.StateContinuous,
	}
}

func (s *Security) Lock() { s.mu.Lock() }
func (s *Security) Unlock() { s.mu.Unlock() }
func (s *Security) RLock() { s.mu.RLock() }
func (s *Security) RUnlock() { s.mu.RUnlock() }

func (s *Security) ISIN() string { return s.isin }
func (s *Security) TickSize() int64 { return s.tickSize }
func (s *Security) LotSize() int64 { return s.lotSize }
func (s *Security) Book() *OrderBook { return s.book }
func (s *Security) MarketPrice() int64 { return s.marketPrice }
func (s *Security) State() domain.MatchingState { return s.state }

// SetMarketPrice seeds the reference price, e.g. the previous close.
func (s *Security) SetMarketPrice(price int64) {
	s.marketPrice = price
}

// FindOrder returns the queued order with the given id, or nil.
func (s *Security) FindOrder(side domain.Side, orderID int64) *domain.Order {
	return s.book.FindByOrderID(side, orderID)
}

func (s *Security) hasEnoughPositions(sh *domain.Shareholder, additional int64) bool {
	queued := s.book.TotalSellQuantityByShareholder(sh)
	return sh.HasEnoughPositionsOn(s.isin, queued+additional)
}

// NewOrder submits a freshly created order. During an auction the order
// is only queued; a buy reserves its full value immediately.
func (s *Security) NewOrder(order *domain.Order) *domain.MatchResult {
	if s.state == domain.StateAuction {
		if order.Side == domain.SideSell && !s.hasEnoughPositions(order.Shareholder, order.Quantity) {
			return domain.Rejected(domain.OutcomeNotEnoughPositions)
		}
		if order.Side == domain.SideBuy && !order.Broker.Reserve(order.Value()) {
			return domain.Rejected(domain.OutcomeNotEnoughCredit)
		}
		s.book.Enqueue(order)
		return &domain.MatchResult{Outcome: domain.OutcomeQueuedDuringAuction, Remainder: order}
	}
	return s.matcher.Execute(s, order, 0)
}

// DeleteOrder removes a queued order, releasing a buy order's reserved
// credit.
func (s *Security) DeleteOrder(side domain.Side, orderID int64) error {
	order := s.book.FindByOrderID(side, orderID)
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.Side == domain.SideBuy {
		order.Broker.IncreaseCredit(order.Value())
	}
	s.book.Remove(order)
	return nil
}

// UpdateOrder modifies a queued order. An update that keeps priority is
// applied in place. Otherwise the order leaves the book and is matched
// again under its new terms; if that fails the original order is put
// back where it was and its reservation restored.
func (s *Security) UpdateOrder(u domain.OrderUpdate) (*domain.MatchResult, error) {
	order := s.book.FindByOrderID(u.Side, u.OrderID)
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.MinimumExecutionQuantity != u.MinimumExecutionQuantity {
		return domain.Rejected(domain.OutcomeNotEqualMinimumExecutionQuantity), nil
	}
	if order.Side == domain.SideSell && !s.hasEnoughPositions(order.Shareholder, u.Quantity-order.Quantity) {
		return domain.Rejected(domain.OutcomeNotEnoughPositions), nil
	}
	if order.Kind == domain.KindStopLimit && u.RequestID != "" {
		order.RequestID = u.RequestID
	}

	if order.Side == domain.SideBuy {
		order.Broker.IncreaseCredit(order.Value())
	}
	original := *order

	if !order.LosesPriority(u) {
		order.ApplyUpdate(u)
		if order.Side == domain.SideBuy {
			order.Broker.DecreaseCredit(order.Value())
		}
		return domain.Executed(order, nil), nil
	}

	s.book.Remove(order)
	order.ApplyUpdate(u)

	if s.state == domain.StateAuction {
		if order.Side == domain.SideBuy && !order.Broker.Reserve(order.Value()) {
			s.restore(order, original)
			return domain.Rejected(domain.OutcomeNotEnoughCredit), nil
		}
		s.book.Enqueue(order)
		return &domain.MatchResult{Outcome: domain.OutcomeQueuedDuringAuction, Remainder: order}, nil
	}

	result := s.matcher.Execute(s, order, 0)
	if result.Outcome.IsError() {
		s.restore(order, original)
	}
	return result, nil
}

// restore puts an order back exactly as it was before a failed update.
func (s *Security) restore(order *domain.Order, original domain.Order) {
	*order = original
	s.book.Restore(order)
	if order.Side == domain.SideBuy {
		order.Broker.DecreaseCredit(order.Value())
	}
}

// ChangeMatchingState switches the trading regime. Leaving an auction
// runs the opening auction under the new state and returns its trades.
func (s *Security) ChangeMatchingState(target domain.MatchingState) []*domain.Trade {
	previous := s.state
	s.state = target
	if previous == domain.StateAuction {
		return s.matcher.OpenAuction(s)
	}
	return nil
}

// TriggerOrder pops one stop order whose trigger holds at the current
// market price, buys before sells, and activates it. It returns nil
// when nothing triggers.
func (s *Security) TriggerOrder() *domain.Order {
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		if o := s.book.ActivateFirst(side, s.marketPrice); o != nil {
			o.Activate()
			return o
		}
	}
	return nil
}

// ExecuteActivated matches an activated stop order in continuous
// trading. A buy's stop reservation is released before matching.
func (s *Security) ExecuteActivated(order *domain.Order) *domain.MatchResult {
	if order.Side == domain.SideBuy {
		order.Broker.IncreaseCredit(order.Value())
	}
	return s.matcher.Execute(s, order, 0)
}

// EnqueueActivated queues an activated stop order for the next auction
// opening. Its reservation is kept.
func (s *Security) EnqueueActivated(order *domain.Order) {
	s.book.Enqueue(order)
}

// TradableQuantityAt is the quantity that would trade if the book
// uncrossed at price.
func (s *Security) TradableQuantityAt(price int64) int64 {
	return min(
		s.book.TotalTradableQuantity(price, domain.SideBuy),
		s.book.TotalTradableQuantity(price, domain.SideSell),
	)
}

// TradableQuantity is the quantity that would trade at the opening price.
func (s *Security) TradableQuantity() int64 {
	price := s.OpeningPrice()
	if price == 0 {
		return 0
	}
	return s.TradableQuantityAt(price)
}

// OpeningPrice picks the candidate price, among every book price and
// the market price, that maximizes tradable quantity. Ties go to the
// price nearest the market price, then to the lowest price. It returns
// 0 when nothing can trade.
func (s *Security) OpeningPrice() int64 {
	var best, bestQuantity int64
	found := false
	for _, p := range append(s.book.Prices(), s.marketPrice) {
		q := s.TradableQuantityAt(p)
		if !found || s.betterOpening(p, q, best, bestQuantity) {
			best, bestQuantity, found = p, q, true
		}
	}
	if bestQuantity == 0 {
		return 0
	}
	return best
}

func (s *Security) betterOpening(p, q, best, bestQuantity int64) bool {
	if q != bestQuantity {
		return q > bestQuantity
	}
	d, bestD := abs(p-s.marketPrice), abs(best-s.marketPrice)
	if d != bestD {
		return d < bestD
	}
	return p < best
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
