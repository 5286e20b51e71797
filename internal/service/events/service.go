package events

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/ws"
)

// Service persists and streams fleet events.
type Service struct {
	repo   repository.EventRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs an event service.
func New(repo repository.EventRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Publish stores an event and broadcasts it to ship and fleet subscribers.
func (s Service) Publish(ctx context.Context, event domain.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.OccurredAt = event.OccurredAt.UTC()

	if s.repo != nil {
		record := domain.EventRecord{
			Type:       event.Type,
			ShipID:     event.ShipID,
			Payload:    event.Payload,
			OccurredAt: event.OccurredAt,
		}
		if err := s.repo.AppendEvent(ctx, &record); err != nil {
			s.logger.Warn("failed to persist event", "type", event.Type, "error", err)
		}
	}
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "error", err)
		return
	}
	if event.ShipID != "" {
		s.hub.Broadcast(event.ShipID, payload)
	}
	s.hub.Broadcast(ws.TopicFleet, payload)
}

// History returns recent events for a ship.
func (s Service) History(ctx context.Context, shipID string, limit int) ([]domain.EventRecord, error) {
	return s.repo.ListEventsByShip(ctx, shipID, limit)
}

// Hub exposes the stream hub to HTTP handlers.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// TypeFilter wraps a subscriber so it only receives the named event types.
// An empty type set passes everything through.
type TypeFilter struct {
	next  ws.Subscriber
	types map[string]struct{}
}

// NewTypeFilter builds a filtering subscriber.
func NewTypeFilter(next ws.Subscriber, types []string) *TypeFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return &TypeFilter{next: next, types: set}
}

// Send forwards payloads whose event type matches the filter.
func (f *TypeFilter) Send(payload []byte) error {
	if len(f.types) > 0 {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &envelope); err == nil {
			if _, ok := f.types[envelope.Type]; !ok {
				return nil
			}
		}
	}
	return f.next.Send(payload)
}

// Close closes the underlying subscriber.
func (f *TypeFilter) Close() {
	f.next.Close()
}
