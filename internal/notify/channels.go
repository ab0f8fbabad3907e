package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
)

const (
	colorDetectedHex  = "#dc3545"
	colorRecoveredHex = "#5cdd8b"
	colorDetected     = 0xdc3545
	colorRecovered    = 0x5cdd8b
)

func eventColorHex(t EventType) string {
	if t == EventRecovered {
		return colorRecoveredHex
	}
	return colorDetectedHex
}

func eventColor(t EventType) int {
	if t == EventRecovered {
		return colorRecovered
	}
	return colorDetected
}

func eventTitle(ev Event) string {
	if ev.Type == EventRecovered {
		return fmt.Sprintf("✅ Monitor recovered: %s", ev.MonitorName)
	}
	return fmt.Sprintf("🔴 Monitor down: %s", ev.MonitorName)
}

// WebhookChannel POSTs the raw event envelope as JSON.
type WebhookChannel struct {
	client *http.Client
}

func NewWebhookChannel() *WebhookChannel {
	return &WebhookChannel{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *WebhookChannel) Send(ctx context.Context, cfg model.AlertConfig, ev Event) error {
	payload := map[string]any{
		"event": string(ev.Type),
		"monitor": map[string]any{
			"id":   ev.MonitorID,
			"name": ev.MonitorName,
			"url":  ev.MonitorURL,
		},
		"incident":  map[string]any{"id": ev.IncidentID},
		"timestamp": ev.Timestamp.Format(time.RFC3339),
	}
	if ev.Error != "" {
		payload["error"] = ev.Error
	}
	return postJSON(ctx, c.client, cfg.Target, payload)
}

// SlackChannel POSTs a color-coded attachment to an incoming webhook.
type SlackChannel struct {
	client *http.Client
}

func NewSlackChannel() *SlackChannel {
	return &SlackChannel{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *SlackChannel) Send(ctx context.Context, cfg model.AlertConfig, ev Event) error {
	fields := []map[string]any{
		{"title": "Monitor", "value": ev.MonitorName, "short": true},
		{"title": "URL", "value": ev.MonitorURL, "short": true},
	}
	if ev.Error != "" {
		fields = append(fields, map[string]any{"title": "Error", "value": ev.Error, "short": false})
	}

	payload := map[string]any{
		"attachments": []map[string]any{
			{
				"color":  eventColorHex(ev.Type),
				"title":  eventTitle(ev),
				"fields": fields,
				"ts":     ev.Timestamp.Unix(),
			},
		},
	}
	return postJSON(ctx, c.client, cfg.Target, payload)
}

// DiscordChannel POSTs a color-coded embed to a Discord webhook.
type DiscordChannel struct {
	client *http.Client
}

func NewDiscordChannel() *DiscordChannel {
	return &DiscordChannel{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *DiscordChannel) Send(ctx context.Context, cfg model.AlertConfig, ev Event) error {
	description := fmt.Sprintf("**URL**: %s", ev.MonitorURL)
	if ev.Error != "" {
		description += fmt.Sprintf("\n**Error**: %s", ev.Error)
	}

	payload := map[string]any{
		"username": "Uptime Sentry",
		"embeds": []map[string]any{
			{
				"title":       eventTitle(ev),
				"description": description,
				"color":       eventColor(ev.Type),
				"timestamp":   ev.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return postJSON(ctx, c.client, cfg.Target, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
