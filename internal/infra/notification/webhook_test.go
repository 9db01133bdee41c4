package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/internal/config"
)

func TestWebhookClient_Send(t *testing.T) {
	var received WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewWebhookClient(config.NotificationConfig{
		WebhookURL: srv.URL,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	result, err := client.Send(context.Background(), Message{
		Event:    EventReviewRequested,
		Title:    "SQL Injection in login form",
		Body:     "A review has been requested",
		Severity: "high",
		Fields:   map[string]string{"finding_id": "abc"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, EventReviewRequested, received.EventType)
	assert.Equal(t, "SQL Injection in login form", received.Title)
	assert.Equal(t, GetSeverityColor("high"), received.Color)
}

func TestWebhookClient_SendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewWebhookClient(config.NotificationConfig{
		WebhookURL: srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	require.NoError(t, err)

	result, err := client.Send(context.Background(), Message{Event: EventFindingClosed, Severity: "low"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.EqualValues(t, 2, calls.Load())
}

func TestWebhookClient_SendReportsPersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := NewWebhookClient(config.NotificationConfig{
		WebhookURL: srv.URL,
		Timeout:    time.Second,
	})
	require.NoError(t, err)

	result, err := client.Send(context.Background(), Message{Event: EventFindingClosed, Severity: "low"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "403")
}

func TestNewWebhookClient_RequiresURL(t *testing.T) {
	_, err := NewWebhookClient(config.NotificationConfig{})
	assert.Error(t, err)
}
