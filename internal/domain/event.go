package domain

import "time"

// EventType names a notification emitted for a handled command.
type EventType string

const (
	EventOrderAccepted        EventType = "order.accepted"
	EventOrderUpdated         EventType = "order.updated"
	EventOrderRejected        EventType = "order.rejected"
	EventOrderExecuted        EventType = "order.executed"
	EventOrderActivated       EventType = "order.activated"
	EventOrderDeleted         EventType = "order.deleted"
	EventOpeningPrice         EventType = "opening_price.published"
	EventSecurityStateChanged EventType = "security.state_changed"
	EventTradeExecuted        EventType = "trade.executed"
)

// EventTypes lists every event type in a stable order.
var EventTypes = []EventType{
	EventOrderAccepted,
	EventOrderUpdated,
	EventOrderRejected,
	EventOrderExecuted,
	EventOrderActivated,
	EventOrderDeleted,
	EventOpeningPrice,
	EventSecurityStateChanged,
	EventTradeExecuted,
}

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TradeRecord is the wire form of a trade inside an event.
type TradeRecord struct {
	TradeID      string `json:"trade_id"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	BuyOrderID   int64  `json:"buy_order_id"`
	SellOrderID  int64  `json:"sell_order_id"`
	BuyBrokerID  int64  `json:"buy_broker_id"`
	SellBrokerID int64  `json:"sell_broker_id"`
}

// NewTradeRecord converts a trade to its wire form.
func NewTradeRecord(t *Trade) TradeRecord {
	r := TradeRecord{
		TradeID:     t.TradeID,
		Price:       t.Price,
		Quantity:    t.Quantity,
		BuyOrderID:  t.Buy.OrderID,
		SellOrderID: t.Sell.OrderID,
	}
	if t.Buy.Broker != nil {
		r.BuyBrokerID = t.Buy.Broker.BrokerID
	}
	if t.Sell.Broker != nil {
		r.SellBrokerID = t.Sell.Broker.BrokerID
	}
	return r
}

// Event is a notification about a handled command. Only the fields
// relevant to Type are set.
type Event struct {
	Type             EventType     `json:"type"`
	ISIN             string        `json:"isin"`
	RequestID        string        `json:"request_id,omitempty"`
	OrderID          int64         `json:"order_id,omitempty"`
	Reasons          []string      `json:"reasons,omitempty"`
	Trades           []TradeRecord `json:"trades,omitempty"`
	OpeningPrice     *int64        `json:"opening_price,omitempty"`
	TradableQuantity *int64        `json:"tradable_quantity,omitempty"`
	State            MatchingState `json:"state,omitempty"`
	OccurredAt       time.Time     `json:"occurred_at"`
}
