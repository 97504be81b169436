package store

import (
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// ShareholderStore is a thread-safe in-memory store for shareholders,
// keyed by shareholder_id.
type ShareholderStore struct {
	mu           sync.RWMutex
	shareholders map[int64]*domain.Shareholder
}

// NewShareholderStore creates an empty ShareholderStore.
func NewShareholderStore() *ShareholderStore {
	return &ShareholderStore{
		shareholders: make(map[int64]*domain.Shareholder),
	}
}

// Create adds a shareholder. It returns domain.ErrShareholderAlreadyExists
// if the id is taken.
func (s *ShareholderStore) Create(sh *domain.Shareholder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shareholders[sh.ShareholderID]; exists {
		return domain.ErrShareholderAlreadyExists
	}
	s.shareholders[sh.ShareholderID] = sh
	return nil
}

// Get returns the shareholder or domain.ErrShareholderNotFound.
func (s *ShareholderStore) Get(id int64) (*domain.Shareholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shareholders[id]
	if !ok {
		return nil, domain.ErrShareholderNotFound
	}
	return sh, nil
}
