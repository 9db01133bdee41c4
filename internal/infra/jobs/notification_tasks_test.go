package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/internal/infra/notification"
	"github.com/vulndeck/api/pkg/logger"
)

type fakeSender struct {
	messages []notification.Message
	result   *notification.SendResult
	err      error
}

func (s *fakeSender) Send(_ context.Context, msg notification.Message) (*notification.SendResult, error) {
	s.messages = append(s.messages, msg)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &notification.SendResult{Success: true}, nil
}

func (s *fakeSender) TestConnection(ctx context.Context) (*notification.SendResult, error) {
	return s.Send(ctx, notification.Message{Event: "test"})
}

func TestNotificationTaskHandler_HandleReviewRequested(t *testing.T) {
	sender := &fakeSender{}
	handler := NewNotificationTaskHandler(sender, logger.NewNop())

	task, err := NewReviewRequestedTask(ReviewRequestedPayload{
		FindingID: "f-1",
		Title:     "Outdated TLS configuration",
		Severity:  "medium",
		Reviewers: []string{"u-1", "u-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, TypeNotificationReviewRequested, task.Type())

	require.NoError(t, handler.HandleReviewRequested(context.Background(), task))
	require.Len(t, sender.messages, 1)

	msg := sender.messages[0]
	assert.Equal(t, notification.EventReviewRequested, msg.Event)
	assert.Equal(t, "Outdated TLS configuration", msg.Title)
	assert.Equal(t, "medium", msg.Severity)
	assert.Contains(t, msg.Body, "2 reviewers")
	assert.Equal(t, "f-1", msg.Fields["finding_id"])
}

func TestNotificationTaskHandler_HandleFindingClosed(t *testing.T) {
	sender := &fakeSender{}
	handler := NewNotificationTaskHandler(sender, logger.NewNop())

	task, err := NewFindingClosedTask(FindingClosedPayload{
		FindingID: "f-2",
		Title:     "Open S3 bucket",
		Severity:  "high",
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleFindingClosed(context.Background(), task))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, notification.EventFindingClosed, sender.messages[0].Event)
}

func TestNotificationTaskHandler_DeliveryFailures(t *testing.T) {
	task, err := NewFindingClosedTask(FindingClosedPayload{FindingID: "f-3", Title: "x", Severity: "low"})
	require.NoError(t, err)

	t.Run("transport error surfaces for retry", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("connection refused")}
		handler := NewNotificationTaskHandler(sender, logger.NewNop())
		assert.Error(t, handler.HandleFindingClosed(context.Background(), task))
	})

	t.Run("webhook rejection surfaces for retry", func(t *testing.T) {
		sender := &fakeSender{result: &notification.SendResult{Success: false, Error: "status 500"}}
		handler := NewNotificationTaskHandler(sender, logger.NewNop())
		err := handler.HandleFindingClosed(context.Background(), task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		handler := NewNotificationTaskHandler(&fakeSender{}, logger.NewNop())
		bad := asynq.NewTask(TypeNotificationFindingClosed, []byte("{"))
		assert.Error(t, handler.HandleFindingClosed(context.Background(), bad))
	})
}

func TestReviewRequestedTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewReviewRequestedTask(ReviewRequestedPayload{
		FindingID: "f-9",
		Title:     "t",
		Severity:  "critical",
		Reviewers: []string{"u-1"},
	})
	require.NoError(t, err)

	var payload ReviewRequestedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "f-9", payload.FindingID)
	assert.Equal(t, []string{"u-1"}, payload.Reviewers)
}
