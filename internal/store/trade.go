package store

import (
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// TradeTape is a thread-safe in-memory record of executed trades,
// keyed by isin. Each security keeps at most limit trades; older ones
// are dropped first.
type TradeTape struct {
	mu     sync.RWMutex
	limit  int
	trades map[string][]*domain.Trade // isin → trades (chronological)
}

// NewTradeTape creates an empty TradeTape. A limit <= 0 keeps every
// trade.
func NewTradeTape(limit int) *TradeTape {
	return &TradeTape{
		limit:  limit,
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds trades to the end of the isin's tape.
func (s *TradeTape) Append(isin string, trades ...*domain.Trade) {
	if len(trades) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tape := append(s.trades[isin], trades...)
	if s.limit > 0 && len(tape) > s.limit {
		tape = append([]*domain.Trade(nil), tape[len(tape)-s.limit:]...)
	}
	s.trades[isin] = tape
}

// List returns the isin's trades in chronological order.
// Returns an empty slice if no trades exist for the security.
func (s *TradeTape) List(isin string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[isin]
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}
