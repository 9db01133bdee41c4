package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/vulndeck/api/internal/infra/notification"
	"github.com/vulndeck/api/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queues        map[string]int
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a background job worker with the notification handlers
// registered.
func NewWorker(cfg WorkerConfig, sender notification.Sender, log *logger.Logger) *Worker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		}
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
		},
	)

	mux := asynq.NewServeMux()

	handler := NewNotificationTaskHandler(sender, log)
	handler.RegisterHandlers(mux)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log.With("component", "job_worker"),
	}
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}
