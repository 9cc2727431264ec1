package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/metrics"
	"DevelopmentScanner/internal/ports"
)

const recentWindow = 24 * time.Hour

// Categorizer is the part of the categorization engine the pipeline re-runs
// on every article.
type Categorizer interface {
	ImpactScorer
	Classify(article domain.RawArticle) domain.Classification
	ExtractEntities(article domain.RawArticle) domain.EntityExtraction
}

// Processor validates, filters and persists articles for one area at a time.
type Processor struct {
	areas       ports.AreaRepository
	devs        ports.DevelopmentRepository
	categorizer Categorizer
	transformer *Transformer
	now         func() time.Time
	logger      *slog.Logger
}

// Option customises a Processor.
type Option func(*Processor)

// WithClock overrides the clock used for date validation and statistics.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = log
	}
}

// NewProcessor wires the repositories and the categorization engine.
func NewProcessor(areas ports.AreaRepository, devs ports.DevelopmentRepository, categorizer Categorizer, opts ...Option) *Processor {
	p := &Processor{
		areas:       areas,
		devs:        devs,
		categorizer: categorizer,
		transformer: NewTransformer(categorizer),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessArticles runs every article through the pipeline for areaID. It fails
// only when the area cannot be resolved; per-article failures are recorded in
// the result and never abort the batch.
func (p *Processor) ProcessArticles(ctx context.Context, articles []domain.ProcessedArticle, areaID string) (domain.ProcessingJobResult, error) {
	start := time.Now()

	area, err := p.areas.FindByID(ctx, areaID)
	if err != nil {
		return domain.ProcessingJobResult{}, fmt.Errorf("find area %s: %w", areaID, err)
	}
	if area == nil {
		return domain.ProcessingJobResult{}, fmt.Errorf("%w: %s", domain.ErrAreaNotFound, areaID)
	}

	result := domain.ProcessingJobResult{
		CreatedDevelopments: []domain.Development{},
		Errors:              []string{},
	}
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("processing interrupted: %v", err))
			break
		}
		result.ProcessedCount++

		dev, reason, err := p.processOne(ctx, a, *area)
		switch {
		case err != nil:
			result.SkippedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("article %s: %v", a.URL, err))
			metrics.ArticlesSkipped.WithLabelValues(reason).Inc()
		case dev == nil:
			result.SkippedCount++
			metrics.ArticlesSkipped.WithLabelValues(reason).Inc()
			p.debug("article skipped", "url", a.URL, "reason", reason)
		default:
			result.CreatedDevelopments = append(result.CreatedDevelopments, *dev)
			metrics.DevelopmentsCreated.WithLabelValues(string(dev.Type)).Inc()
		}
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	p.info("articles processed",
		"area_id", area.ID,
		"processed", result.ProcessedCount,
		"created", len(result.CreatedDevelopments),
		"skipped", result.SkippedCount,
		"errors", len(result.Errors))
	return result, nil
}

// processOne returns the created development, or nil with a skip reason.
// Panics are converted into errors so siblings keep going.
func (p *Processor) processOne(ctx context.Context, a domain.ProcessedArticle, area domain.Area) (dev *domain.Development, reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev, reason, err = nil, "panic", fmt.Errorf("panic: %v", r)
		}
	}()

	report := Validate(a, p.now())
	if !report.Valid() {
		return nil, "invalid", fmt.Errorf("validation failed: %s", strings.Join(report.Errors, "; "))
	}
	if len(report.Warnings) > 0 {
		p.warn("article quality warnings", "url", a.URL, "warnings", report.Warnings)
	}

	ents := p.categorizer.ExtractEntities(a.PlainArticle())
	if rel := CheckRelevance(a, ents.Locations, area); !rel.Relevant {
		return nil, "irrelevant", nil
	}

	if p.isDuplicate(ctx, a, area) {
		return nil, "duplicate", nil
	}

	c := p.categorizer.Classify(a.RawArticle)
	candidate, ok := p.transformer.Transform(a, area, c, ents)
	if !ok {
		return nil, "low_confidence", nil
	}

	created, err := p.devs.Create(ctx, candidate)
	if err != nil {
		return nil, "persistence", fmt.Errorf("create development: %w", err)
	}
	return &created, "", nil
}

// isDuplicate fails open: a lookup error is logged and treated as no match.
func (p *Processor) isDuplicate(ctx context.Context, a domain.ProcessedArticle, area domain.Area) bool {
	existing, err := p.devs.FindDuplicateDevelopments(ctx, area.ID, a.Title, a.URL)
	if err != nil {
		p.warn("duplicate check failed, continuing", "url", a.URL, "error", err)
		return false
	}
	return len(existing) > 0
}

// BatchResult aggregates ProcessArticles runs over several areas.
type BatchResult struct {
	Results        map[string]domain.ProcessingJobResult
	TotalProcessed int
	TotalCreated   int
	TotalSkipped   int
	Errors         []string
}

// ProcessBatch processes each area independently; one area failing does not
// affect the others.
func (p *Processor) ProcessBatch(ctx context.Context, byArea map[string][]domain.ProcessedArticle) BatchResult {
	out := BatchResult{Results: make(map[string]domain.ProcessingJobResult, len(byArea)), Errors: []string{}}

	areaIDs := make([]string, 0, len(byArea))
	for id := range byArea {
		areaIDs = append(areaIDs, id)
	}
	sort.Strings(areaIDs)

	for _, id := range areaIDs {
		res, err := p.ProcessArticles(ctx, byArea[id], id)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("area %s: %v", id, err))
			continue
		}
		out.Results[id] = res
		out.TotalProcessed += res.ProcessedCount
		out.TotalCreated += len(res.CreatedDevelopments)
		out.TotalSkipped += res.SkippedCount
		for _, e := range res.Errors {
			out.Errors = append(out.Errors, fmt.Sprintf("area %s: %s", id, e))
		}
	}
	return out
}

// Statistics summarises persisted developments for areaID, or for every area
// when areaID is empty.
func (p *Processor) Statistics(ctx context.Context, areaID string) (domain.ProcessingStatistics, error) {
	var (
		devs []domain.Development
		err  error
	)
	if areaID == "" {
		devs, err = p.devs.FindAll(ctx)
	} else {
		devs, err = p.devs.FindByAreaID(ctx, areaID)
	}
	if err != nil {
		return domain.ProcessingStatistics{}, fmt.Errorf("load developments: %w", err)
	}

	stats := domain.ProcessingStatistics{ByType: map[domain.DevelopmentType]int{}}
	for _, t := range domain.PersistableTypes {
		stats.ByType[t] = 0
	}
	since := p.now().Add(-recentWindow)
	var total float64
	for _, d := range devs {
		stats.TotalDevelopments++
		stats.ByType[d.Type]++
		total += d.ImpactScore
		if d.CreatedAt.After(since) {
			stats.RecentProcessingCount++
		}
	}
	if stats.TotalDevelopments > 0 {
		stats.AvgImpactScore = math.Round(total/float64(stats.TotalDevelopments)*100) / 100
	}
	return stats, nil
}

// ErrInvalidDevelopment rejects bulk-imported records that cannot be stored.
var ErrInvalidDevelopment = errors.New("invalid development")

// ImportDevelopments bulk-upserts externally prepared records, clamping their
// impact scores. Existing rows with the same area, title and source URL are
// updated in place.
func (p *Processor) ImportDevelopments(ctx context.Context, devs []domain.Development) (int, error) {
	prepared := make([]domain.Development, 0, len(devs))
	for i, d := range devs {
		if d.AreaID == "" || strings.TrimSpace(d.Title) == "" {
			return 0, fmt.Errorf("%w: record %d needs area id and title", ErrInvalidDevelopment, i)
		}
		if !d.Type.IsPersistable() {
			return 0, fmt.Errorf("%w: record %d has type %q", ErrInvalidDevelopment, i, d.Type)
		}
		d.ImpactScore = domain.ClampImpactScore(d.ImpactScore)
		prepared = append(prepared, d)
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	n, err := p.devs.BulkUpsert(ctx, prepared)
	if err != nil {
		return 0, fmt.Errorf("bulk upsert developments: %w", err)
	}
	p.info("developments imported", "count", n)
	return n, nil
}

func (p *Processor) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Processor) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
