package domain

import "time"

// Trade is a single execution between a buy and a sell order. Buy and
// Sell are value snapshots taken before the trade reduced either order.
type Trade struct {
	TradeID    string
	ISIN       string
	Price      int64
	Quantity   int64
	Buy        Order
	Sell       Order
	ExecutedAt time.Time
}

// Value is the traded notional.
func (t *Trade) Value() int64 {
	return t.Price * t.Quantity
}
