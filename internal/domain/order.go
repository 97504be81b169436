package domain

import (
	"fmt"
	"time"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side an order of this side trades against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderKind discriminates the order variants.
type OrderKind string

const (
	KindLimit     OrderKind = "limit"
	KindIceberg   OrderKind = "iceberg"
	KindStopLimit OrderKind = "stop_limit"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusQueued    OrderStatus = "QUEUED"
	StatusActivated OrderStatus = "ACTIVATED"
	StatusSnapshot  OrderStatus = "SNAPSHOT"
)

// Order is a limit order, an iceberg order or a stop-limit order, told
// apart by Kind. Iceberg fields are only meaningful for KindIceberg and
// stop fields only for KindStopLimit.
type Order struct {
	OrderID                  int64
	ISIN                     string
	Kind                     OrderKind
	Side                     Side
	InitialQuantity          int64
	Quantity                 int64
	Price                    int64
	Broker                   *Broker
	Shareholder              *Shareholder
	EntryTime                time.Time
	Status                   OrderStatus
	MinimumExecutionQuantity int64

	PeakSize          int64
	DisplayedQuantity int64

	StopPrice int64
	RequestID string

	// Sequence is the arrival position assigned by the order book.
	// Zero means the book assigns a fresh one on the next enqueue.
	Sequence uint64
}

// NewLimitOrder creates a plain limit order in status NEW.
func NewLimitOrder(id int64, isin string, side Side, quantity, price int64, broker *Broker, shareholder *Shareholder, minimumExecution int64) *Order {
	return &Order{
		OrderID:                  id,
		ISIN:                     isin,
		Kind:                     KindLimit,
		Side:                     side,
		InitialQuantity:          quantity,
		Quantity:                 quantity,
		Price:                    price,
		Broker:                   broker,
		Shareholder:              shareholder,
		EntryTime:                time.Now(),
		Status:                   StatusNew,
		MinimumExecutionQuantity: minimumExecution,
	}
}

// NewIcebergOrder creates an iceberg order displaying at most peakSize.
func NewIcebergOrder(id int64, isin string, side Side, quantity, price int64, broker *Broker, shareholder *Shareholder, minimumExecution, peakSize int64) *Order {
	o := NewLimitOrder(id, isin, side, quantity, price, broker, shareholder, minimumExecution)
	o.Kind = KindIceberg
	o.PeakSize = peakSize
	o.DisplayedQuantity = min(peakSize, quantity)
	return o
}

// NewStopLimitOrder creates a stop-limit order that stays inert until
// the market price reaches stopPrice.
func NewStopLimitOrder(id int64, isin string, side Side, quantity, price int64, broker *Broker, shareholder *Shareholder, stopPrice int64, requestID string) *Order {
	o := NewLimitOrder(id, isin, side, quantity, price, broker, shareholder, 0)
	o.Kind = KindStopLimit
	o.StopPrice = stopPrice
	o.RequestID = requestID
	return o
}

// Value is the notional of the open quantity at the order's limit price.
func (o *Order) Value() int64 {
	return o.Price * o.Quantity
}

// OpenQuantity is the quantity a resting order offers to the next
// match: the displayed slice for icebergs, the full quantity otherwise.
func (o *Order) OpenQuantity() int64 {
	if o.Kind == KindIceberg {
		return o.DisplayedQuantity
	}
	return o.Quantity
}

// DecreaseQuantity removes amount from the open quantity. Decreasing
// below zero is a programming error and panics.
func (o *Order) DecreaseQuantity(amount int64) {
	if amount < 0 || amount > o.Quantity {
		panic(fmt.Sprintf("order %d: cannot decrease quantity %d by %d", o.OrderID, o.Quantity, amount))
	}
	o.Quantity -= amount
	if o.Kind == KindIceberg {
		o.DisplayedQuantity = max(0, o.DisplayedQuantity-amount)
	}
}

// Replenish refills an iceberg's displayed slice from its hidden remainder.
func (o *Order) Replenish() {
	if o.Kind == KindIceberg {
		o.DisplayedQuantity = min(o.PeakSize, o.Quantity)
	}
}

// Snapshot returns a value copy of the order for trade records.
func (o *Order) Snapshot() Order {
	s := *o
	s.Status = StatusSnapshot
	return s
}

// IsActivatable reports whether a stop order's trigger holds at the
// given market price.
func (o *Order) IsActivatable(marketPrice int64) bool {
	if o.Kind != KindStopLimit {
		return true
	}
	if o.Side == SideBuy {
		return o.StopPrice <= marketPrice
	}
	return o.StopPrice >= marketPrice
}

// ConvertToLimit turns a triggered stop order into a plain limit order
// with the same identity and terms.
func (o *Order) ConvertToLimit() {
	if o.Kind == KindStopLimit {
		o.Kind = KindLimit
		o.Sequence = 0
	}
}

// Activate converts a queued stop order that was triggered by the market.
func (o *Order) Activate() {
	o.ConvertToLimit()
	o.Status = StatusActivated
}

// OrderUpdate carries the new terms of an order modification.
type OrderUpdate struct {
	RequestID                string
	OrderID                  int64
	Side                     Side
	Quantity                 int64
	Price                    int64
	PeakSize                 int64
	MinimumExecutionQuantity int64
	StopPrice                int64
}

// LosesPriority reports whether applying u moves the order to the back
// of the queue.
func (o *Order) LosesPriority(u OrderUpdate) bool {
	if u.Price != o.Price || u.Quantity > o.Quantity {
		return true
	}
	if o.Kind == KindIceberg && u.PeakSize > o.PeakSize {
		return true
	}
	return o.Kind == KindStopLimit && u.StopPrice != o.StopPrice
}

// ApplyUpdate sets the order's terms to u. When the update loses
// priority the sequence is cleared so the next enqueue places the
// order at the back of its level.
func (o *Order) ApplyUpdate(u OrderUpdate) {
	lost := o.LosesPriority(u)
	o.Quantity = u.Quantity
	o.Price = u.Price
	if o.Quantity > o.InitialQuantity {
		o.InitialQuantity = o.Quantity
	}
	if o.Kind == KindIceberg {
		o.PeakSize = u.PeakSize
		if lost {
			o.DisplayedQuantity = min(o.PeakSize, o.Quantity)
		} else {
			o.DisplayedQuantity = min(o.DisplayedQuantity, o.PeakSize, o.Quantity)
		}
	}
	if o.Kind == KindStopLimit {
		o.StopPrice = u.StopPrice
	}
	if lost {
		o.Sequence = 0
	}
}
