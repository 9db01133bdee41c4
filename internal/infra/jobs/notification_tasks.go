package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vulndeck/api/internal/infra/notification"
	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/logger"
)

const (
	// TypeNotificationReviewRequested delivers a review-requested event.
	TypeNotificationReviewRequested = "notification:review_requested"

	// TypeNotificationFindingClosed delivers a finding-closed event.
	TypeNotificationFindingClosed = "notification:finding_closed"
)

// ReviewRequestedPayload contains data for a review-requested notification.
type ReviewRequestedPayload struct {
	FindingID string   `json:"finding_id"`
	Title     string   `json:"title"`
	Severity  string   `json:"severity"`
	Reviewers []string `json:"reviewers"`
}

// FindingClosedPayload contains data for a finding-closed notification.
type FindingClosedPayload struct {
	FindingID string `json:"finding_id"`
	Title     string `json:"title"`
	Severity  string `json:"severity"`
}

// NewReviewRequestedTask creates a task for a review-requested notification.
func NewReviewRequestedTask(payload ReviewRequestedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal review requested payload: %w", err)
	}

	return asynq.NewTask(
		TypeNotificationReviewRequested,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(1*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewFindingClosedTask creates a task for a finding-closed notification.
func NewFindingClosedTask(payload FindingClosedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal finding closed payload: %w", err)
	}

	return asynq.NewTask(
		TypeNotificationFindingClosed,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(1*time.Minute),
		asynq.Queue("low"),
	), nil
}

// NotificationTaskHandler delivers queued notification tasks through a Sender.
type NotificationTaskHandler struct {
	sender notification.Sender
	logger *logger.Logger
}

// NewNotificationTaskHandler creates a notification task handler.
func NewNotificationTaskHandler(sender notification.Sender, log *logger.Logger) *NotificationTaskHandler {
	return &NotificationTaskHandler{
		sender: sender,
		logger: log.With("component", "notification_handler"),
	}
}

// RegisterHandlers registers the notification handlers on the mux.
func (h *NotificationTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNotificationReviewRequested, h.HandleReviewRequested)
	mux.HandleFunc(TypeNotificationFindingClosed, h.HandleFindingClosed)
}

// HandleReviewRequested delivers a review-requested notification.
func (h *NotificationTaskHandler) HandleReviewRequested(ctx context.Context, t *asynq.Task) error {
	var payload ReviewRequestedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := notification.Message{
		Event:    notification.EventReviewRequested,
		Title:    payload.Title,
		Body:     fmt.Sprintf("A review has been requested for %q (%d reviewers).", payload.Title, len(payload.Reviewers)),
		Severity: payload.Severity,
		Fields: map[string]string{
			"finding_id": payload.FindingID,
		},
	}

	return h.deliver(ctx, "review_requested", payload.FindingID, msg)
}

// HandleFindingClosed delivers a finding-closed notification.
func (h *NotificationTaskHandler) HandleFindingClosed(ctx context.Context, t *asynq.Task) error {
	var payload FindingClosedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := notification.Message{
		Event:    notification.EventFindingClosed,
		Title:    payload.Title,
		Body:     fmt.Sprintf("Finding %q was closed and mitigated.", payload.Title),
		Severity: payload.Severity,
		Fields: map[string]string{
			"finding_id": payload.FindingID,
		},
	}

	return h.deliver(ctx, "finding_closed", payload.FindingID, msg)
}

func (h *NotificationTaskHandler) deliver(ctx context.Context, kind, findingID string, msg notification.Message) error {
	result, err := h.sender.Send(ctx, msg)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "error").Inc()
		h.logger.Error("notification delivery failed",
			"kind", kind,
			"finding_id", findingID,
			"error", err,
		)
		return err
	}
	if !result.Success {
		metrics.NotificationsTotal.WithLabelValues(kind, "rejected").Inc()
		h.logger.Warn("notification rejected by webhook",
			"kind", kind,
			"finding_id", findingID,
			"reason", result.Error,
		)
		return fmt.Errorf("webhook rejected %s notification: %s", kind, result.Error)
	}

	metrics.NotificationsTotal.WithLabelValues(kind, "ok").Inc()
	h.logger.Info("notification delivered",
		"kind", kind,
		"finding_id", findingID,
	)
	return nil
}
