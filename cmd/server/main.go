package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulndeck/api/internal/app"
	"github.com/vulndeck/api/internal/app/ingest"
	"github.com/vulndeck/api/internal/config"
	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/internal/infra/http/handler"
	"github.com/vulndeck/api/internal/infra/http/routes"
	"github.com/vulndeck/api/internal/infra/jobs"
	"github.com/vulndeck/api/internal/infra/notification"
	"github.com/vulndeck/api/internal/infra/postgres"
	"github.com/vulndeck/api/internal/infra/redis"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/validator"
)

// Command line flags.
var (
	showRoutes  = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat = flag.String("route-format", "table", "Route output format: table, json")
	routeMethod = flag.String("route-method", "", "Filter routes by HTTP method")
	routePath   = flag.String("route-path", "", "Filter routes containing this path")
	routeSort   = flag.String("route-sort", "path", "Sort routes by: path, method, handler")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	shutdownTracing := initTracing(cfg, log)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("failed to shutdown tracer provider", "error", err)
		}
	}()

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	countCache := redis.NewCountCache(redisClient)

	findingRepo := postgres.NewFindingRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)
	endpointRepo := postgres.NewEndpointRepository(db)

	// ==========================================================================
	// Notifications
	// ==========================================================================
	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	var notifier app.Notifier = jobClient
	var worker *jobs.Worker
	if cfg.Notification.WebhookURL != "" {
		sender, err := notification.NewWebhookClient(cfg.Notification)
		if err != nil {
			log.Error("failed to initialize webhook client", "error", err)
			return 1
		}
		worker = jobs.NewWorker(jobs.WorkerConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Worker.Concurrency,
			Queues:        cfg.Worker.Queues,
		}, sender, log)
	} else {
		log.Info("no webhook URL configured, notifications disabled")
		notifier = noopNotifier{}
	}

	// ==========================================================================
	// Services
	// ==========================================================================
	findingSvc := app.NewFindingService(findingRepo, endpointRepo, notifier, countCache, log)
	listingSvc := app.NewListingService(findingRepo, countCache, log)
	bulkSvc := app.NewBulkEditService(findingRepo, countCache, log)
	templateSvc := app.NewTemplateService(templateRepo, findingRepo, log)
	ingestSvc := ingest.NewService(findingRepo, endpointRepo, log)
	log.Info("services initialized")

	sweeper := app.NewReviewSweeper(findingRepo, listingSvc, cfg.Review.SweepSchedule, cfg.Review.StaleAfter, log)

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	server := infrahttp.NewServer(cfg, log)
	routes.Register(server.Router(), routes.Handlers{
		Health:   handler.NewHealthHandler(handler.WithDatabase(db), handler.WithRedis(redisClient)),
		Finding:  handler.NewFindingHandler(findingSvc, listingSvc, bulkSvc, v, log),
		Template: handler.NewTemplateHandler(templateSvc, v, log),
		Ingest:   handler.NewIngestHandler(ingestSvc, cfg.Ingest.MaxReportSize, log),
	})

	if *showRoutes {
		stats := infrahttp.CollectRoutes(server.Router())
		filters := infrahttp.RouteFilters{
			Method: *routeMethod,
			Path:   *routePath,
			SortBy: *routeSort,
		}
		infrahttp.PrintRoutes(os.Stdout, stats, *routeFormat, filters)
		return 0
	}

	// ==========================================================================
	// Background Workers
	// ==========================================================================
	if worker != nil {
		if err := worker.Start(); err != nil {
			log.Error("failed to start job worker", "error", err)
			return 1
		}
	}

	if err := sweeper.Start(); err != nil {
		log.Error("failed to start review sweeper", "error", err)
		return 1
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	sweeper.Stop()
	if worker != nil {
		worker.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}

// noopNotifier drops notifications when no webhook is configured.
type noopNotifier struct{}

func (noopNotifier) ReviewRequested(context.Context, *finding.Finding, []shared.ID) error {
	return nil
}

func (noopNotifier) FindingClosed(context.Context, *finding.Finding) error {
	return nil
}
