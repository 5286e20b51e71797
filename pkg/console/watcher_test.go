package console

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

type fakeEventSource struct {
	events []client.Event
}

func (f *fakeEventSource) SubscribeEvents(ctx context.Context, _ string, _ client.StreamOptions, handler client.EventHandler) error {
	for _, event := range f.events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := handler(event); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWatcherRefreshesOnEvents(t *testing.T) {
	source := &fakeEventSource{events: []client.Event{
		{Type: "ship.updated", ShipID: "s1"},
		{Type: "deployment.updated", ShipID: "s1"},
	}}
	var refreshes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(source, "tok", func(context.Context) {
		if refreshes.Add(1) == 2 {
			cancel()
		}
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
	if got := refreshes.Load(); got != 2 {
		t.Fatalf("expected 2 refreshes, got %d", got)
	}
}
