package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"DevelopmentScanner/internal/categorize"
	"DevelopmentScanner/internal/config"
	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/filter"
	"DevelopmentScanner/internal/infrastructure/redisstore"
	"DevelopmentScanner/internal/infrastructure/scheduler"
	"DevelopmentScanner/internal/infrastructure/storage"
	"DevelopmentScanner/internal/infrastructure/telegram"
	"DevelopmentScanner/internal/jobqueue"
	"DevelopmentScanner/internal/logging"
	"DevelopmentScanner/internal/metrics"
	"DevelopmentScanner/internal/ports"
	"DevelopmentScanner/internal/sources"
	"DevelopmentScanner/internal/usecase"
	"DevelopmentScanner/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// repository is what the app needs from a storage backend.
type repository interface {
	ports.AreaRepository
	ports.DevelopmentRepository
	UpsertArea(ctx context.Context, area domain.Area) error
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	redis     *redis.Client
	processor *validation.Processor
	queue     *jobqueue.Queue
	service   *usecase.CrawlService
	scheduler *usecase.Scheduler
}

// New builds the application: storage, sources, pipeline, queue and scheduler.
// Postgres and Redis are used when configured, in-memory stores otherwise.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	for _, area := range configuredAreas(cfg.Areas) {
		if err := repo.UpsertArea(ctx, area); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed area %s: %w", area.ID, err)
		}
	}

	store, err := a.openJobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := sources.FromConfig(cfg.Sources, &http.Client{Timeout: cfg.Crawler.SourceTimeout}, baseLogger.With("component", "source"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build sources: %w", err)
	}
	if registry.Len() == 0 {
		baseLogger.Warn("no article sources configured")
	}

	engine := categorize.New()
	contentFilter := filter.New(engine, filter.WithLogger(baseLogger.With("component", "filter")))
	a.processor = validation.NewProcessor(repo, repo, engine, validation.WithLogger(baseLogger.With("component", "validation")))

	var notifier ports.Notifier
	tg := telegram.NewNotifier(
		cfg.Notifications.Telegram.BotToken,
		cfg.Notifications.Telegram.ChatID,
		telegram.WithBaseURL(cfg.Notifications.Telegram.BaseURL),
	)
	if tg.Enabled() {
		notifier = tg
	}

	crawler := usecase.NewCrawler(usecase.CrawlerDeps{
		Sources:        registry.All(),
		Filter:         contentFilter,
		Processor:      a.processor,
		Notifier:       notifier,
		SourceTimeout:  cfg.Crawler.SourceTimeout,
		LookbackMonths: cfg.Crawler.LookbackMonths,
		Logger:         baseLogger.With("component", "crawler"),
	})

	a.queue = jobqueue.New(store, crawler.Run, jobqueue.Config{
		Concurrency:   cfg.Queue.Concurrency,
		JobTimeout:    cfg.Queue.JobTimeout,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		BackoffBase:   cfg.Queue.BackoffBase,
		KeepCompleted: cfg.Queue.KeepCompleted,
		KeepFailed:    cfg.Queue.KeepFailed,
	}, jobqueue.WithLogger(baseLogger.With("component", "jobqueue")))

	a.service = usecase.NewCrawlService(a.queue, crawler, a.processor, cfg.Crawler.LookbackMonths, baseLogger.With("component", "service"))

	var selector ports.AreaSelector = usecase.NewLoggingAreaSelector(baseLogger.With("component", "selector"))
	if areas := configuredAreas(cfg.Areas); len(areas) > 0 {
		selector = usecase.NewStaticAreaSelector(areas)
	}
	cron := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "cron"))
	if err := cron.Validate(); err != nil {
		a.Close()
		return nil, err
	}
	a.scheduler = usecase.NewScheduler(cron, selector, a.service, baseLogger.With("component", "scheduler"))

	return a, nil
}

func (a *Application) openRepository(ctx context.Context) (repository, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database configured, using in-memory repository")
		return storage.NewMemoryRepository(), nil
	}
	db, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return repo, nil
}

func (a *Application) openJobStore(ctx context.Context) (ports.JobStore, error) {
	rc := a.cfg.Redis
	if rc.Address == "" {
		return jobqueue.NewMemoryStore(), nil
	}
	client, err := redisstore.NewClient(ctx, redisstore.Config{
		Address:   rc.Address,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.KeyPrefix,
		TTL:       rc.JobTTL,
	})
	if err != nil {
		return nil, err
	}
	a.redis = client
	return redisstore.NewJobStore(client, rc.KeyPrefix, rc.JobTTL), nil
}

// Service exposes the crawl service to commands.
func (a *Application) Service() *usecase.CrawlService {
	return a.service
}

// Processor exposes the validation pipeline to commands.
func (a *Application) Processor() *validation.Processor {
	return a.processor
}

// Serve runs the worker pool, the daily trigger and the metrics endpoint
// until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	a.queue.Start(ctx)
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	metricsErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Address; addr != "" {
		go func() {
			metricsErr <- metrics.Serve(ctx, addr, a.logger.With("component", "metrics"))
		}()
	}

	a.logger.Info("devscanner started")
	var err error
	select {
	case <-ctx.Done():
	case err = <-metricsErr:
		if err != nil {
			err = fmt.Errorf("metrics server: %w", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := a.scheduler.Stop(stopCtx); stopErr != nil {
		a.logger.Warn("scheduler stop", "error", stopErr)
	}
	a.queue.Wait()
	a.logger.Info("devscanner stopped")
	return err
}

// Crawl runs one area synchronously.
func (a *Application) Crawl(ctx context.Context, areaID, areaName, query string) (domain.ProcessingJobResult, error) {
	return a.service.ProcessArticlesForArea(ctx, a.service.JobData(areaName, areaID, query))
}

// Import bulk-upserts developments read from a YAML or JSON file.
func (a *Application) Import(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	devs, err := decodeDevelopments(f, filepath.Ext(path))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return a.processor.ImportDevelopments(ctx, devs)
}

func decodeDevelopments(r io.Reader, ext string) ([]domain.Development, error) {
	var devs []domain.Development
	if strings.EqualFold(ext, ".json") {
		if err := json.NewDecoder(r).Decode(&devs); err != nil {
			return nil, err
		}
		return devs, nil
	}
	if err := yaml.NewDecoder(r).Decode(&devs); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return devs, nil
}

// Close releases database and Redis connections.
func (a *Application) Close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}

func configuredAreas(cfgs []config.AreaConfig) []domain.Area {
	areas := make([]domain.Area, 0, len(cfgs))
	for _, c := range cfgs {
		if c.ID == "" || c.Name == "" {
			continue
		}
		areas = append(areas, domain.Area{
			ID:          c.ID,
			Name:        c.Name,
			District:    c.District,
			Latitude:    c.Latitude,
			Longitude:   c.Longitude,
			PostalCodes: c.PostalCodes,
		})
	}
	return areas
}
