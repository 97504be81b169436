package domain

import "time"

// Webhook is a subscription delivering one event type to a URL.
type Webhook struct {
	WebhookID string
	Event     EventType
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
