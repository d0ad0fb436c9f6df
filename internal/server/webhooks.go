package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gighub/internal/config"
	"gighub/internal/domain"
	"gighub/internal/repo"
)

// WebhookDispatcher pushes marketplace events to configured endpoints by
// polling the event log. Each endpoint keeps its own cursor; a failed
// delivery retries on the next tick.
type WebhookDispatcher struct {
	Repo      repo.Repo
	Endpoints []config.WebhookConfig
	Logger    *slog.Logger
	Interval  time.Duration
	Client    *http.Client
}

const webhookBatchSize = 50

func (d *WebhookDispatcher) Run(ctx context.Context) {
	if len(d.Endpoints) == 0 {
		return
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	cursors := make([]int64, len(d.Endpoints))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for i, ep := range d.Endpoints {
			evts, err := d.Repo.ListEventsAfter(ctx, cursors[i], ep.Events, webhookBatchSize)
			if err != nil {
				logger.Error("webhook poll failed", "url", ep.URL, "error", err)
				continue
			}
			for _, evt := range evts {
				if err := deliver(ctx, client, ep.URL, evt); err != nil {
					logger.Warn("webhook delivery failed", "url", ep.URL, "event", evt.ID, "error", err)
					break
				}
				cursors[i] = evt.ID
			}
		}
	}
}

func deliver(ctx context.Context, client *http.Client, url string, evt domain.Event) error {
	body, err := json.Marshal(map[string]any{
		"id":         evt.ID,
		"ts":         evt.TS,
		"type":       evt.Type,
		"entityKind": evt.EntityKind,
		"entityId":   evt.EntityID,
		"actorId":    evt.ActorID,
		"payload":    json.RawMessage(evt.Payload),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	return nil
}
