package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/store"
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	URL    string
	Events []domain.EventType
}

// WebhookService handles webhook CRUD and delivers events to the
// subscribed URLs. It implements publish.Publisher.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	inflight sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, webhookTimeout time.Duration, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Upsert validates the request and creates the missing subscriptions.
// Returns the resulting webhooks, whether any new subscription was
// created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, domain.NewValidationError("url is required")
	}
	if len(req.URL) > 2048 {
		return nil, false, domain.NewValidationError("url must be at most 2048 characters")
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, domain.NewValidationError("url must be a valid absolute URL")
	}
	if parsed.Scheme != "https" {
		return nil, false, domain.NewValidationError("url must use https scheme")
	}
	if len(req.Events) == 0 {
		return nil, false, domain.NewValidationError("events must be a non-empty array")
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.EventType]bool, len(req.Events))
	events := make([]domain.EventType, 0, len(req.Events))
	for _, event := range req.Events {
		if !domain.ValidEventType(event) {
			return nil, false, domain.NewValidationError("Unknown event type: " + string(event))
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))
	for _, event := range events {
		stored, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, stored)
	}
	return webhooks, anyCreated, nil
}

// List returns every webhook subscription.
func (s *WebhookService) List() []*domain.Webhook {
	return s.store.List()
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// Publish posts e to every webhook subscribed to its type. Deliveries
// run in the background; failures are logged and never reach the
// caller.
func (s *WebhookService) Publish(_ context.Context, e domain.Event) error {
	subscribers := s.store.ListByEvent(e.Type)
	if len(subscribers) == 0 {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	for _, wh := range subscribers {
		s.inflight.Add(1)
		go func(wh *domain.Webhook) {
			defer s.inflight.Done()
			s.deliver(wh, e.Type, body)
		}(wh)
	}
	return nil
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookService) Wait() {
	s.inflight.Wait()
}

// deliver sends the webhook payload via HTTP POST with the required headers.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType domain.EventType, body []byte) {
	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed", "webhook_id", wh.WebhookID, "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", string(eventType))

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed", "webhook_id", wh.WebhookID, "event", eventType, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook delivery rejected", "webhook_id", wh.WebhookID, "event", eventType, "status", resp.StatusCode)
	}
}
