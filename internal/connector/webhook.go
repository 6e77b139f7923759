package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
)

// Notification levels, mapped to embed colors.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// WebhookNotifier posts embed messages to a chat webhook when the session
// logs in or is disconnected.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier and subscribes it to the events
// selected in cfg. It returns nil when no webhook URL is configured.
func NewWebhookNotifier(cfg config.WebhookConfig, bus *events.EventBus) *WebhookNotifier {
	if cfg.URL == "" {
		return nil
	}
	wn := &WebhookNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
	if cfg.NotifyOnLogin {
		bus.Subscribe(events.EventLoginSucceeded, "webhook.login", wn.onLogin)
	}
	if cfg.NotifyOnDisconnect {
		bus.Subscribe(events.EventDisconnected, "webhook.disconnect", wn.onDisconnect)
	}
	if cfg.NotifyOnWarning {
		bus.Subscribe(events.EventWarning, "webhook.warning", wn.onWarning)
	}
	return wn
}

func (wn *WebhookNotifier) onWarning(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.WarningPayload)
	if !ok {
		return nil
	}
	return wn.Send(ctx, "Warning: "+p.Check, p.Message, LevelWarning)
}

func (wn *WebhookNotifier) onLogin(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.LoginPayload)
	if !ok {
		return nil
	}
	return wn.Send(ctx, "Logged in", fmt.Sprintf("**%s** joined (`%s`)", p.Username, p.UUID), LevelInfo)
}

func (wn *WebhookNotifier) onDisconnect(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.DisconnectedPayload)
	if !ok {
		return nil
	}
	level, msg := LevelWarning, p.Reason
	if p.Error != "" {
		level = LevelError
		msg = fmt.Sprintf("%s\n```%s```", p.Reason, p.Error)
	}
	return wn.Send(ctx, "Disconnected", msg, level)
}

// Send posts a single embed.
func (wn *WebhookNotifier) Send(ctx context.Context, title, message, level string) error {
	var color int
	switch level {
	case LevelError:
		color = 0xFF0000
	case LevelWarning:
		color = 0xFFAA00
	default:
		color = 0x00FF00
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   wn.now().Format(time.RFC3339),
				"footer": map[string]string{
					"text": "cubelink",
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("title", title).Msg("webhook notification sent")
	return nil
}
