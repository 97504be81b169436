package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// BrokerStore is a thread-safe in-memory store for brokers,
// keyed by broker_id.
type BrokerStore struct {
	mu      sync.RWMutex
	brokers map[int64]*domain.Broker
}

// NewBrokerStore creates an empty BrokerStore.
func NewBrokerStore() *BrokerStore {
	return &BrokerStore{
		brokers: make(map[int64]*domain.Broker),
	}
}

// Create adds a broker to the store. It returns
// domain.ErrBrokerAlreadyExists if a broker with the same ID
// already exists.
func (s *BrokerStore) Create(b *domain.Broker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.brokers[b.BrokerID]; exists {
		return domain.ErrBrokerAlreadyExists
	}
	s.brokers[b.BrokerID] = b
	return nil
}

// Get retrieves a broker by ID. It returns
// domain.ErrBrokerNotFound if the broker does not exist.
func (s *BrokerStore) Get(id int64) (*domain.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brokers[id]
	if !ok {
		return nil, domain.ErrBrokerNotFound
	}
	return b, nil
}

// Exists returns true if a broker with the given ID exists.
func (s *BrokerStore) Exists(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.brokers[id]
	return ok
}

// List returns every broker ordered by id.
func (s *BrokerStore) List() []*domain.Broker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerID < out[j].BrokerID })
	return out
}
