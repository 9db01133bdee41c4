// Package jobs provides asynq-backed background job enqueueing and processing.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Client enqueues background jobs. It implements the application layer's
// Notifier interface by queueing webhook deliveries instead of sending inline.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// ReviewRequested queues a review-requested notification.
func (c *Client) ReviewRequested(ctx context.Context, f *finding.Finding, reviewers []shared.ID) error {
	ids := make([]string, 0, len(reviewers))
	for _, r := range reviewers {
		ids = append(ids, r.String())
	}

	task, err := NewReviewRequestedTask(ReviewRequestedPayload{
		FindingID: f.ID().String(),
		Title:     f.Title(),
		Severity:  strings.ToLower(f.Severity().String()),
		Reviewers: ids,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue review requested notification",
			"finding_id", f.ID(),
			"error", err,
		)
		return fmt.Errorf("enqueue task: %w", err)
	}

	c.logger.Info("review requested notification queued",
		"task_id", info.ID,
		"finding_id", f.ID(),
		"queue", info.Queue,
	)
	return nil
}

// FindingClosed queues a finding-closed notification.
func (c *Client) FindingClosed(ctx context.Context, f *finding.Finding) error {
	task, err := NewFindingClosedTask(FindingClosedPayload{
		FindingID: f.ID().String(),
		Title:     f.Title(),
		Severity:  strings.ToLower(f.Severity().String()),
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue finding closed notification",
			"finding_id", f.ID(),
			"error", err,
		)
		return fmt.Errorf("enqueue task: %w", err)
	}

	c.logger.Info("finding closed notification queued",
		"task_id", info.ID,
		"finding_id", f.ID(),
		"queue", info.Queue,
	)
	return nil
}
