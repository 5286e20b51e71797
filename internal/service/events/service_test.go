package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
)

type fakeEventRepo struct {
	records []domain.EventRecord
}

func (f *fakeEventRepo) AppendEvent(_ context.Context, record *domain.EventRecord) error {
	record.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeEventRepo) ListEventsByShip(_ context.Context, shipID string, limit int) ([]domain.EventRecord, error) {
	out := make([]domain.EventRecord, 0)
	for _, record := range f.records {
		if record.ShipID == shipID {
			out = append(out, record)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type captureSubscriber struct {
	payloads [][]byte
	closed   bool
}

func (c *captureSubscriber) Send(payload []byte) error {
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureSubscriber) Close() { c.closed = true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishPersistsEvent(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := New(repo, nil, testLogger())

	svc.Publish(context.Background(), domain.Event{Type: "ship.updated", ShipID: "s1"})

	if len(repo.records) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(repo.records))
	}
	record := repo.records[0]
	if record.Type != "ship.updated" || record.ShipID != "s1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.OccurredAt.IsZero() || record.OccurredAt.Location() != time.UTC {
		t.Fatalf("occurred_at not stamped in UTC: %v", record.OccurredAt)
	}
}

func TestHistoryReturnsShipEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := New(repo, nil, testLogger())
	svc.Publish(context.Background(), domain.Event{Type: "ship.updated", ShipID: "s1"})
	svc.Publish(context.Background(), domain.Event{Type: "deployment.updated", ShipID: "s2"})

	history, err := svc.History(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 1 || history[0].Type != "ship.updated" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestTypeFilterPassesMatchingTypes(t *testing.T) {
	sink := &captureSubscriber{}
	filter := NewTypeFilter(sink, []string{"ship.updated"})

	match, _ := json.Marshal(domain.Event{Type: "ship.updated", OccurredAt: time.Now()})
	other, _ := json.Marshal(domain.Event{Type: "session.prompted", OccurredAt: time.Now()})

	if err := filter.Send(match); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := filter.Send(other); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(sink.payloads) != 1 {
		t.Fatalf("expected 1 forwarded payload, got %d", len(sink.payloads))
	}

	filter.Close()
	if !sink.closed {
		t.Fatal("Close did not propagate")
	}
}

func TestTypeFilterEmptySetPassesEverything(t *testing.T) {
	sink := &captureSubscriber{}
	filter := NewTypeFilter(sink, nil)
	payload, _ := json.Marshal(domain.Event{Type: "anything"})
	if err := filter.Send(payload); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(sink.payloads) != 1 {
		t.Fatalf("expected payload forwarded, got %d", len(sink.payloads))
	}
}
