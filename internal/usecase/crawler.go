package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/metrics"
	"DevelopmentScanner/internal/ports"
)

const (
	defaultSourceTimeout  = 20 * time.Second
	defaultLookbackMonths = 12
)

// Progress checkpoints reported by Crawler.Run.
const (
	progressStarted   = 10
	progressFetched   = 30
	progressFiltered  = 60
	progressProcessed = 80
	progressDone      = 100
)

// ContentFilter narrows merged source output to relevant, unique, recent articles.
type ContentFilter interface {
	Process(articles []domain.RawArticle, cutoff time.Time) []domain.ProcessedArticle
}

// ArticleProcessor validates and persists filtered articles for one area.
type ArticleProcessor interface {
	ProcessArticles(ctx context.Context, articles []domain.ProcessedArticle, areaID string) (domain.ProcessingJobResult, error)
}

// CrawlerDeps wires all driven adapters into the crawl workflow.
type CrawlerDeps struct {
	Sources        []ports.ArticleSource
	Filter         ContentFilter
	Processor      ArticleProcessor
	Notifier       ports.Notifier
	SourceTimeout  time.Duration
	LookbackMonths int
	Logger         *slog.Logger
	Now            func() time.Time
}

// Crawler implements the per-job crawl workflow.
type Crawler struct {
	sources        []ports.ArticleSource
	filter         ContentFilter
	processor      ArticleProcessor
	notifier       ports.Notifier
	sourceTimeout  time.Duration
	lookbackMonths int
	logger         *slog.Logger
	now            func() time.Time
}

// NewCrawler constructs the orchestration component.
func NewCrawler(deps CrawlerDeps) *Crawler {
	c := &Crawler{
		sources:        deps.Sources,
		filter:         deps.Filter,
		processor:      deps.Processor,
		notifier:       deps.Notifier,
		sourceTimeout:  deps.SourceTimeout,
		lookbackMonths: deps.LookbackMonths,
		logger:         deps.Logger,
		now:            deps.Now,
	}
	if c.sourceTimeout <= 0 {
		c.sourceTimeout = defaultSourceTimeout
	}
	if c.lookbackMonths <= 0 {
		c.lookbackMonths = defaultLookbackMonths
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Run fetches, filters and persists one job's articles. It always returns a
// result; the error is non-nil only for an unknown area or an expired ctx.
func (c *Crawler) Run(ctx context.Context, job domain.CrawlJob, progress func(int)) (res *domain.CrawlerResult, err error) {
	start := time.Now()
	if progress == nil {
		progress = func(int) {}
	}

	res = &domain.CrawlerResult{
		JobID:    job.ID,
		AreaID:   job.Data.AreaID,
		AreaName: job.Data.AreaName,
		Articles: []domain.ProcessedArticle{},
		Errors:   []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("crawl failed: %v", r))
			c.warn("crawl panicked", "job_id", job.ID, "panic", r)
			err = nil
		}
		res.TotalArticles = len(res.Articles)
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
	}()

	progress(progressStarted)
	c.debug("crawl started", "job_id", job.ID, "area", job.Data.AreaName, "sources", len(c.sources))

	raw, sourceErrors := c.fetchAll(ctx, job.Data)
	res.Errors = append(res.Errors, sourceErrors...)
	metrics.ArticlesFiltered.WithLabelValues("fetched").Add(float64(len(raw)))
	progress(progressFetched)
	if ctx.Err() != nil {
		return res, c.interrupted(ctx, res)
	}

	if c.filter != nil {
		res.Articles = c.filter.Process(raw, c.cutoff(job.Data))
	}
	metrics.ArticlesFiltered.WithLabelValues("kept").Add(float64(len(res.Articles)))
	progress(progressFiltered)
	if ctx.Err() != nil {
		return res, c.interrupted(ctx, res)
	}

	if c.processor != nil && job.Data.AreaID != "" {
		processed, pErr := c.processor.ProcessArticles(ctx, res.Articles, job.Data.AreaID)
		if errors.Is(pErr, domain.ErrAreaNotFound) {
			res.Errors = append(res.Errors, pErr.Error())
			return res, pErr
		}
		if pErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("process articles: %v", pErr))
		} else {
			res.Processing = &processed
			res.Errors = append(res.Errors, processed.Errors...)
		}
	}
	progress(progressProcessed)
	if ctx.Err() != nil {
		return res, c.interrupted(ctx, res)
	}

	if res.Processing != nil && len(res.Processing.CreatedDevelopments) > 0 && c.notifier != nil {
		message := buildDigestMessage(job.Data.AreaName, res.Processing.CreatedDevelopments)
		if nErr := c.notifier.PublishDigest(ctx, message); nErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("notify: %v", nErr))
		}
	}
	progress(progressDone)

	c.info("crawl finished",
		"job_id", job.ID,
		"area_id", job.Data.AreaID,
		"fetched", len(raw),
		"kept", len(res.Articles),
		"errors", len(res.Errors))
	return res, nil
}

func (c *Crawler) cutoff(data domain.JobData) time.Time {
	if !data.FromDate.IsZero() {
		return data.FromDate
	}
	return c.now().AddDate(0, -c.lookbackMonths, 0)
}

// interrupted records why the run stopped early and returns the matching error.
func (c *Crawler) interrupted(ctx context.Context, res *domain.CrawlerResult) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", domain.ErrJobTimeout, err)
	}
	res.Errors = append(res.Errors, err.Error())
	c.warn("crawl interrupted", "job_id", res.JobID, "error", err)
	return err
}

// fetchAll queries every source concurrently and merges results in completion order.
func (c *Crawler) fetchAll(ctx context.Context, data domain.JobData) ([]domain.RawArticle, []string) {
	var (
		mu      sync.Mutex
		merged  = make([]domain.RawArticle, 0)
		errList = make([]string, 0)
		g       errgroup.Group
	)

	for _, src := range c.sources {
		g.Go(func() error {
			articles, err := c.fetchOne(ctx, src, data)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errList = append(errList, fmt.Sprintf("source %s: %v", src.Name(), err))
				return nil
			}
			merged = append(merged, articles...)
			return nil
		})
	}
	_ = g.Wait()

	return merged, errList
}

type fetchReply struct {
	articles []domain.RawArticle
	err      error
}

// fetchOne races a single source against its own timeout.
func (c *Crawler) fetchOne(ctx context.Context, src ports.ArticleSource, data domain.JobData) ([]domain.RawArticle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.sourceTimeout)
	defer cancel()

	done := make(chan fetchReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchReply{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		articles, err := src.SearchArticles(fetchCtx, data.Query, data.AreaName, data.FromDate)
		done <- fetchReply{articles: articles, err: err}
	}()

	var reply fetchReply
	select {
	case reply = <-done:
	case <-fetchCtx.Done():
		reply.err = fetchCtx.Err()
	}

	switch {
	case ctx.Err() != nil && reply.err != nil:
		metrics.SourceFetches.WithLabelValues(src.Name(), "cancelled").Inc()
		return nil, ctx.Err()
	case reply.err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded):
		metrics.SourceFetches.WithLabelValues(src.Name(), "timeout").Inc()
		c.warn("source timed out", "source", src.Name(), "timeout", c.sourceTimeout)
		return nil, fmt.Errorf("%w after %s", domain.ErrSourceTimeout, c.sourceTimeout)
	case reply.err != nil:
		metrics.SourceFetches.WithLabelValues(src.Name(), "error").Inc()
		c.warn("source failed", "source", src.Name(), "error", reply.err)
		return nil, reply.err
	}

	metrics.SourceFetches.WithLabelValues(src.Name(), "ok").Inc()
	c.debug("source fetched", "source", src.Name(), "articles", len(reply.articles))
	return reply.articles, nil
}

func buildDigestMessage(areaName string, devs []domain.Development) string {
	if len(devs) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*: %d new development(s)\n\n", areaName, len(devs))
	for _, dev := range devs {
		fmt.Fprintf(&b, "- %s\nType: %s | Impact: %.2f\n%s\n\n",
			dev.Title,
			dev.Type,
			dev.ImpactScore,
			dev.SourceURL)
	}

	return b.String()
}

func (c *Crawler) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Crawler) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Crawler) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
