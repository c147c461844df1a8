// Package alert delivers best-effort anomaly notifications to a chat
// webhook. Delivery is fire-and-forget: failures are logged and dropped,
// never retried, and never surfaced to the caller.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmwangi/pesalink-gateway/internal/config"
)

type WebhookNotifier struct {
	webhookURL string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type webhookPayload struct {
	Text string `json:"text"`
}

func NewWebhookNotifier(cfg config.AlertConfig, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Notify posts the message on its own goroutine so latency of the alert
// channel never leaks into the callback acknowledgment path.
func (n *WebhookNotifier) Notify(text string) {
	if n.webhookURL == "" {
		n.logger.Warn("alert webhook not configured, dropping alert", "text", text)
		return
	}

	go n.send(text)
}

func (n *WebhookNotifier) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	jsonData, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		n.logger.Error("failed to marshal alert", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		n.logger.Error("failed to build alert request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("alert delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("alert webhook refused message", "status", resp.StatusCode)
	}
}
