// Package notification delivers finding lifecycle events to an outbound webhook.
package notification

import (
	"context"
)

// Event kinds carried in the webhook payload.
const (
	EventReviewRequested = "finding.review_requested"
	EventFindingClosed   = "finding.closed"
)

// Message represents a notification message.
type Message struct {
	Event    string            // Event kind, one of the Event* constants
	Title    string            // Finding title
	Body     string            // Main message body
	Severity string            // critical, high, medium, low, info
	Fields   map[string]string // Additional fields to display
}

// SendResult represents the result of sending a notification.
type SendResult struct {
	Success bool
	Error   string
}

// Sender defines the interface for notification delivery.
type Sender interface {
	// Send delivers a notification message.
	Send(ctx context.Context, msg Message) (*SendResult, error)

	// TestConnection verifies the notification configuration.
	TestConnection(ctx context.Context) (*SendResult, error)
}

// GetSeverityColor returns a hex color for a severity label.
func GetSeverityColor(severity string) string {
	switch severity {
	case "critical":
		return "#DC2626"
	case "high":
		return "#EA580C"
	case "medium":
		return "#D97706"
	case "low":
		return "#65A30D"
	default:
		return "#6B7280"
	}
}
