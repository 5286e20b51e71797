package console

import (
	"context"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// EventSource is the streaming side of the API client.
type EventSource interface {
	SubscribeEvents(ctx context.Context, token string, opts client.StreamOptions, handler client.EventHandler) error
}

// watchedTypes are the events that invalidate roster and ops data.
var watchedTypes = []string{"ship.updated", "deployment.updated", "session.prompted"}

// Watcher keeps the console current by re-fetching whenever the event
// stream reports fleet activity.
type Watcher struct {
	source  EventSource
	token   string
	refresh func(context.Context)
	logger  *slog.Logger
	backoff time.Duration
}

// NewWatcher builds a watcher that calls refresh on each matching event.
func NewWatcher(source EventSource, token string, refresh func(context.Context), logger *slog.Logger) *Watcher {
	return &Watcher{
		source:  source,
		token:   token,
		refresh: refresh,
		logger:  logger,
		backoff: 2 * time.Second,
	}
}

// Run subscribes to the event stream and blocks until the context is
// cancelled, reconnecting with a fixed backoff when the stream drops.
func (w *Watcher) Run(ctx context.Context) error {
	opts := client.StreamOptions{Types: watchedTypes}
	for {
		err := w.source.SubscribeEvents(ctx, w.token, opts, func(client.Event) error {
			w.refresh(ctx)
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.logger.Warn("event stream dropped, reconnecting", "error", err)
		}
		select {
		case <-time.After(w.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
