// Package publish delivers order-handling events to downstream sinks.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// Publisher is a sink for events.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Fanout publishes every event to all of its sinks. A failing sink
// does not stop delivery to the others.
type Fanout struct {
	sinks []Publisher
}

// NewFanout creates a Fanout over sinks.
func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish implements Publisher. The returned error joins every sink
// failure.
func (f *Fanout) Publish(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes every event to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.Event) error {
	attrs := []any{
		"event", e.Type,
		"isin", e.ISIN,
	}
	if e.OrderID != 0 {
		attrs = append(attrs, "order_id", e.OrderID)
	}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	if len(e.Trades) > 0 {
		attrs = append(attrs, "trades", len(e.Trades))
	}
	if len(e.Reasons) > 0 {
		attrs = append(attrs, "reasons", e.Reasons)
	}
	p.logger.InfoContext(ctx, "event", attrs...)
	return nil
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns the recorded events of type t.
func (r *Recorder) ByType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
