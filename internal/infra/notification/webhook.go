package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vulndeck/api/internal/config"
)

// WebhookClient posts notification messages as JSON to a configured URL.
type WebhookClient struct {
	webhookURL string
	maxRetries int
	httpClient *http.Client
}

// NewWebhookClient creates a webhook notification client.
func NewWebhookClient(cfg config.NotificationConfig) (*WebhookClient, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookClient{
		webhookURL: cfg.WebhookURL,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WebhookPayload represents the JSON payload sent to the webhook.
type WebhookPayload struct {
	EventType string            `json:"event_type"`
	Timestamp string            `json:"timestamp"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Severity  string            `json:"severity"`
	Fields    map[string]string `json:"fields,omitempty"`
	Color     string            `json:"color,omitempty"`
	Source    string            `json:"source"`
}

// Send delivers a notification message to the webhook, retrying transient
// failures up to the configured maximum.
func (c *WebhookClient) Send(ctx context.Context, msg Message) (*SendResult, error) {
	payload := WebhookPayload{
		EventType: msg.Event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Title:     msg.Title,
		Body:      msg.Body,
		Severity:  msg.Severity,
		Fields:    msg.Fields,
		Color:     GetSeverityColor(msg.Severity),
		Source:    "vulndeck",
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastResult *SendResult
	attempts := c.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.post(ctx, payloadBytes)
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result, nil
		}

		lastResult = result
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return lastResult, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return lastResult, nil
}

func (c *WebhookClient) post(ctx context.Context, payload []byte) (*SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VulnDeck-Notification/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SendResult{
			Success: false,
			Error:   fmt.Sprintf("send request failed: %v", err),
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	// Limit response body to 1MB to bound memory on misbehaving endpoints.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SendResult{
			Success: false,
			Error:   fmt.Sprintf("webhook returned status %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	return &SendResult{Success: true}, nil
}

// TestConnection sends a test notification to verify the webhook configuration.
func (c *WebhookClient) TestConnection(ctx context.Context) (*SendResult, error) {
	testMsg := Message{
		Event:    "test",
		Title:    "VulnDeck Test Notification",
		Body:     "This is a test notification to verify your webhook integration is working correctly.",
		Severity: "low",
	}
	return c.Send(ctx, testMsg)
}
