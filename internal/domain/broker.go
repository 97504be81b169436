package domain

import (
	"sync"
	"time"
)

// Broker owns the credit that pays for buy orders. All credit mutations
// go through the methods below so that concurrent activity on different
// securities serializes on the broker's lock.
type Broker struct {
	BrokerID  int64
	CreatedAt time.Time

	mu     sync.Mutex
	credit int64
}

// NewBroker creates a broker with the given starting credit.
func NewBroker(id, credit int64) *Broker {
	return &Broker{
		BrokerID:  id,
		CreatedAt: time.Now(),
		credit:    credit,
	}
}

// Credit returns the broker's current credit.
func (b *Broker) Credit() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.credit
}

// HasEnoughCredit reports whether amount could be reserved right now.
// A negative amount is never covered.
func (b *Broker) HasEnoughCredit(amount int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return amount >= 0 && b.credit >= amount
}

// Reserve debits amount if the broker can afford it and reports whether
// it did. Check and debit happen under one lock acquisition. A negative
// amount is refused.
func (b *Broker) Reserve(amount int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount < 0 || b.credit < amount {
		return false
	}
	b.credit -= amount
	return true
}

// IncreaseCredit adds amount to the broker's credit.
func (b *Broker) IncreaseCredit(amount int64) {
	b.mu.Lock()
	b.credit += amount
	b.mu.Unlock()
}

// DecreaseCredit subtracts amount unconditionally. Used to reverse
// earlier credits during rollback.
func (b *Broker) DecreaseCredit(amount int64) {
	b.mu.Lock()
	b.credit -= amount
	b.mu.Unlock()
}
