// Package metrics exposes Prometheus instruments for crawl jobs and the
// development pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devscanner_jobs_finished_total",
			Help: "Crawl jobs that reached a terminal state, labeled by status.",
		},
		[]string{"status"},
	)
	JobAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "devscanner_job_attempts_total",
			Help: "Crawl job attempts started, including retries.",
		},
	)
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "devscanner_job_duration_seconds",
			Help:    "Wall time of a single crawl job attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)
	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devscanner_source_fetches_total",
			Help: "Source fetches, labeled by source and outcome (ok, error, timeout).",
		},
		[]string{"source", "outcome"},
	)
	ArticlesFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devscanner_articles_total",
			Help: "Articles seen by the content filter, labeled by stage (fetched, kept).",
		},
		[]string{"stage"},
	)
	DevelopmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devscanner_developments_created_total",
			Help: "Development records persisted, labeled by type.",
		},
		[]string{"type"},
	)
	ArticlesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devscanner_articles_skipped_total",
			Help: "Articles skipped by the validation pipeline, labeled by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(JobsFinished)
	prometheus.MustRegister(JobAttempts)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(SourceFetches)
	prometheus.MustRegister(ArticlesFiltered)
	prometheus.MustRegister(DevelopmentsCreated)
	prometheus.MustRegister(ArticlesSkipped)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if log != nil {
		log.Info("exposing prometheus metrics", "address", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
