package usecase

import (
	"context"
	"log/slog"
	"time"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

// LoggingAreaSelector logs that a scheduled crawl fired and selects nothing.
// Area selection for recurring crawls is not decided yet.
type LoggingAreaSelector struct {
	logger *slog.Logger
}

var _ ports.AreaSelector = (*LoggingAreaSelector)(nil)

// NewLoggingAreaSelector returns the default no-op selector.
func NewLoggingAreaSelector(log *slog.Logger) *LoggingAreaSelector {
	return &LoggingAreaSelector{logger: log}
}

// SelectAreas always returns an empty selection.
func (s *LoggingAreaSelector) SelectAreas(context.Context) ([]domain.Area, error) {
	if s.logger != nil {
		s.logger.Info("scheduled crawl triggered; no area selection configured")
	}
	return nil, nil
}

// StaticAreaSelector re-crawls a fixed list of areas.
type StaticAreaSelector struct {
	areas []domain.Area
}

var _ ports.AreaSelector = (*StaticAreaSelector)(nil)

// NewStaticAreaSelector copies areas.
func NewStaticAreaSelector(areas []domain.Area) *StaticAreaSelector {
	return &StaticAreaSelector{areas: append([]domain.Area(nil), areas...)}
}

// SelectAreas returns the configured areas.
func (s *StaticAreaSelector) SelectAreas(context.Context) ([]domain.Area, error) {
	return append([]domain.Area(nil), s.areas...), nil
}

// Scheduler wires the cron-like driver with the crawl service.
type Scheduler struct {
	driver   ports.Scheduler
	selector ports.AreaSelector
	service  *CrawlService
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring crawls.
func NewScheduler(driver ports.Scheduler, selector ports.AreaSelector, service *CrawlService, log *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, selector: selector, service: service, logger: log}
}

// Start registers the trigger with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.service == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_ = s.Trigger(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Trigger enqueues one crawl per selected area and returns the number queued.
func (s *Scheduler) Trigger(ctx context.Context, at time.Time) int {
	if s.selector == nil {
		return 0
	}

	areas, err := s.selector.SelectAreas(ctx)
	if err != nil {
		s.warn("select areas", "error", err)
		return 0
	}

	queued := 0
	for _, area := range areas {
		if _, err := s.service.AddCrawlerJob(ctx, area.Name, area.ID, ""); err != nil {
			s.warn("enqueue scheduled crawl", "area_id", area.ID, "error", err)
			continue
		}
		queued++
	}
	if s.logger != nil {
		s.logger.Info("scheduled crawl", "trigger", at.Format(time.RFC3339), "areas", len(areas), "queued", queued)
	}
	return queued
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
