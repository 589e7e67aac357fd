package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// WebhookConfig configures a webhook sink.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
}

// WebhookSink delivers events to an HTTP endpoint as JSON. Delivery is
// asynchronous and best-effort; failures are logged and tracked in the
// sink's health state, never surfaced to the publisher.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client

	mu        sync.RWMutex
	healthy   bool
	lastError error
}

// NewWebhookSink creates a webhook sink for the given configuration.
func NewWebhookSink(config WebhookConfig) *WebhookSink {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &WebhookSink{
		url:     config.URL,
		headers: config.Headers,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		healthy: true,
	}
}

// Publish hands the event off to a delivery goroutine and returns
// immediately.
func (ws *WebhookSink) Publish(event Event) {
	go ws.deliver(event)
}

// IsHealthy reports whether the most recent delivery succeeded.
func (ws *WebhookSink) IsHealthy() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.healthy
}

// LastError returns the error from the most recent failed delivery.
func (ws *WebhookSink) LastError() error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.lastError
}

func (ws *WebhookSink) deliver(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		ws.setHealth(false, err)
		log.Errorw("failed to marshal webhook payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(payload))
	if err != nil {
		ws.setHealth(false, err)
		log.Errorw("failed to build webhook request", "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		ws.setHealth(false, err)
		log.Warnw("webhook delivery failed", "url", ws.url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook returned status %d", resp.StatusCode)
		ws.setHealth(false, err)
		log.Warnw("webhook delivery rejected", "url", ws.url, "status", resp.StatusCode)
		return
	}

	ws.setHealth(true, nil)
}

func (ws *WebhookSink) setHealth(healthy bool, err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.healthy = healthy
	ws.lastError = err
}
