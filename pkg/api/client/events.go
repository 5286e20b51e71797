package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Event is one frame from the fleet event stream.
type Event struct {
	Type       string          `json:"type"`
	ShipID     string          `json:"ship_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// StreamOptions narrow an event subscription.
type StreamOptions struct {
	// ShipID scopes the stream to one ship. Empty means fleet-wide.
	ShipID string
	// Types keeps only the named event types. Empty keeps everything.
	Types []string
}

// EventHandler receives each decoded stream event. Returning an error stops
// the subscription.
type EventHandler func(Event) error

// SubscribeEvents connects to the server-sent event stream and invokes
// handler for each event until the context is cancelled, the server closes
// the stream, or the handler returns an error.
func (c *Client) SubscribeEvents(ctx context.Context, token string, opts StreamOptions, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("event handler is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := url.Values{}
	if opts.ShipID != "" {
		query.Set("ship_id", opts.ShipID)
	}
	if len(opts.Types) > 0 {
		query.Set("types", strings.Join(opts.Types, ","))
	}
	endpoint := c.baseURL + "/api/events"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	// Streaming connections outlive the default request timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 16*1024), 512*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			// Blank separators and heartbeat comments.
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		if err := handler(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read event stream: %w", err)
	}
	return ctx.Err()
}
