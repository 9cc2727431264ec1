package ports

import (
	"context"
	"time"

	"DevelopmentScanner/internal/domain"
)

// ArticleSource pulls raw articles from one upstream publisher.
// Implementations must honour ctx so a fetch can be raced against a timeout.
type ArticleSource interface {
	Name() string
	SearchArticles(ctx context.Context, query, areaName string, fromDate time.Time) ([]domain.RawArticle, error)
}

// AreaRepository resolves areas. FindByID returns (nil, nil) when the area is absent.
type AreaRepository interface {
	FindByID(ctx context.Context, areaID string) (*domain.Area, error)
}

// DevelopmentRepository persists derived development records.
type DevelopmentRepository interface {
	Create(ctx context.Context, dev domain.Development) (domain.Development, error)
	FindDuplicateDevelopments(ctx context.Context, areaID, title, sourceURL string) ([]domain.Development, error)
	FindByAreaID(ctx context.Context, areaID string) ([]domain.Development, error)
	FindAll(ctx context.Context) ([]domain.Development, error)
	// BulkUpsert inserts or updates on (area_id, title, source_url) conflicts.
	BulkUpsert(ctx context.Context, devs []domain.Development) (int, error)
}

// JobStore keeps crawl job records for polling.
type JobStore interface {
	Save(ctx context.Context, job domain.CrawlJob) error
	Get(ctx context.Context, jobID string) (*domain.CrawlJob, error)
	Delete(ctx context.Context, jobID string) error
}

// AreaSelector decides which areas the recurring trigger re-crawls.
type AreaSelector interface {
	SelectAreas(ctx context.Context) ([]domain.Area, error)
}

// Notifier streams digests of newly created developments to a chat channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
