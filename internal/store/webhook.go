package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: event → url → webhook.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook                      // webhook_id → webhook
	byEvent  map[domain.EventType]map[string]*domain.Webhook // event → url → webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byEvent:  make(map[domain.EventType]map[string]*domain.Webhook),
	}
}

// Upsert stores a subscription keyed by (event, url). If the pair is
// already subscribed the existing webhook is returned unchanged and
// created is false; its webhook_id stays stable.
func (s *WebhookStore) Upsert(w *domain.Webhook) (stored *domain.Webhook, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byEvent[w.Event][w.URL]; ok {
		return existing, false
	}

	s.webhooks[w.WebhookID] = w
	if s.byEvent[w.Event] == nil {
		s.byEvent[w.Event] = make(map[string]*domain.Webhook)
	}
	s.byEvent[w.Event][w.URL] = w
	return w, true
}

// Get retrieves a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// List returns every webhook ordered by event then url.
func (s *WebhookStore) List() []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Event != result[j].Event {
			return result[i].Event < result[j].Event
		}
		return result[i].URL < result[j].URL
	})
	return result
}

// ListByEvent returns the webhooks subscribed to event.
func (s *WebhookStore) ListByEvent(event domain.EventType) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := s.byEvent[event]
	result := make([]*domain.Webhook, 0, len(urls))
	for _, w := range urls {
		result = append(result, w)
	}
	return result
}

// Delete removes a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
// Both the primary and secondary indexes are cleaned up.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}

	delete(s.webhooks, id)
	if urls, ok := s.byEvent[w.Event]; ok {
		delete(urls, w.URL)
		if len(urls) == 0 {
			delete(s.byEvent, w.Event)
		}
	}
	return nil
}
