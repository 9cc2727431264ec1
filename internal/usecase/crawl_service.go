package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"DevelopmentScanner/internal/domain"
)

// JobQueue is the part of the worker pool the service drives.
type JobQueue interface {
	Add(ctx context.Context, data domain.JobData) (string, error)
	Status(ctx context.Context, id string) (domain.JobStatus, error)
	Result(ctx context.Context, id string) (*domain.CrawlerResult, error)
}

// StatisticsReader aggregates persisted developments.
type StatisticsReader interface {
	Statistics(ctx context.Context, areaID string) (domain.ProcessingStatistics, error)
}

// CrawlService is the entry point used by the CLI and the scheduler.
type CrawlService struct {
	queue          JobQueue
	crawler        *Crawler
	stats          StatisticsReader
	lookbackMonths int
	now            func() time.Time
	logger         *slog.Logger
}

// NewCrawlService wires the queue, the synchronous crawler and statistics.
func NewCrawlService(queue JobQueue, crawler *Crawler, stats StatisticsReader, lookbackMonths int, log *slog.Logger) *CrawlService {
	if lookbackMonths <= 0 {
		lookbackMonths = defaultLookbackMonths
	}
	return &CrawlService{
		queue:          queue,
		crawler:        crawler,
		stats:          stats,
		lookbackMonths: lookbackMonths,
		now:            time.Now,
		logger:         log,
	}
}

// JobData builds the payload for an area; an empty query becomes "<areaName> development".
func (s *CrawlService) JobData(areaName, areaID, query string) domain.JobData {
	if strings.TrimSpace(query) == "" {
		query = areaName + " development"
	}
	return domain.JobData{
		AreaID:   areaID,
		AreaName: areaName,
		Query:    query,
		FromDate: s.now().AddDate(0, -s.lookbackMonths, 0),
	}
}

// AddCrawlerJob enqueues a crawl and returns its id without waiting for it.
func (s *CrawlService) AddCrawlerJob(ctx context.Context, areaName, areaID, query string) (string, error) {
	if areaID == "" || areaName == "" {
		return "", errors.New("area id and name are required")
	}
	data := s.JobData(areaName, areaID, query)
	id, err := s.queue.Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("enqueue crawl for %s: %w", areaID, err)
	}
	if s.logger != nil {
		s.logger.Info("crawl job queued", "job_id", id, "area_id", areaID, "query", data.Query)
	}
	return id, nil
}

// GetJobStatus reports the lifecycle state of jobID.
func (s *CrawlService) GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	return s.queue.Status(ctx, jobID)
}

// GetJobResult returns the result of a finished job, or nil while it runs.
func (s *CrawlService) GetJobResult(ctx context.Context, jobID string) (*domain.CrawlerResult, error) {
	return s.queue.Result(ctx, jobID)
}

// ProcessArticlesForArea runs a crawl synchronously, outside the queue.
// Source and notification errors are folded into the returned result.
func (s *CrawlService) ProcessArticlesForArea(ctx context.Context, data domain.JobData) (domain.ProcessingJobResult, error) {
	if data.Query == "" || data.FromDate.IsZero() {
		defaults := s.JobData(data.AreaName, data.AreaID, data.Query)
		data.Query = defaults.Query
		if data.FromDate.IsZero() {
			data.FromDate = defaults.FromDate
		}
	}

	job := domain.CrawlJob{ID: "sync-" + uuid.NewString(), Data: data, Status: domain.JobProcessing}
	res, err := s.crawler.Run(ctx, job, nil)

	out := domain.ProcessingJobResult{
		CreatedDevelopments: []domain.Development{},
		Errors:              []string{},
	}
	if res != nil {
		if res.Processing != nil {
			out = *res.Processing
		}
		out.Errors = res.Errors
		out.ProcessingTimeMs = res.ProcessingTimeMs
	}
	return out, err
}

// GetProcessingStatistics aggregates developments for areaID, or all areas when empty.
func (s *CrawlService) GetProcessingStatistics(ctx context.Context, areaID string) (domain.ProcessingStatistics, error) {
	return s.stats.Statistics(ctx, areaID)
}
