package domain

import (
	"maps"
	"sync"
	"time"
)

// Shareholder holds per-security positions.
type Shareholder struct {
	ShareholderID int64
	CreatedAt     time.Time

	mu        sync.Mutex
	positions map[string]int64 // isin → quantity
}

// NewShareholder creates a shareholder with a copy of the given positions.
func NewShareholder(id int64, positions map[string]int64) *Shareholder {
	p := make(map[string]int64, len(positions))
	maps.Copy(p, positions)
	return &Shareholder{
		ShareholderID: id,
		CreatedAt:     time.Now(),
		positions:     p,
	}
}

// Position returns the quantity held in the given security.
func (s *Shareholder) Position(isin string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[isin]
}

// HasEnoughPositionsOn reports whether at least quantity is held.
func (s *Shareholder) HasEnoughPositionsOn(isin string, quantity int64) bool {
	return s.Position(isin) >= quantity
}

// IncPosition adds quantity to the position in isin.
func (s *Shareholder) IncPosition(isin string, quantity int64) {
	s.mu.Lock()
	s.positions[isin] += quantity
	s.mu.Unlock()
}

// DecPosition removes quantity from the position in isin.
func (s *Shareholder) DecPosition(isin string, quantity int64) {
	s.mu.Lock()
	s.positions[isin] -= quantity
	s.mu.Unlock()
}

// Positions returns a copy of every position.
func (s *Shareholder) Positions() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.positions)
}
