// Package jobqueue runs crawl jobs on a bounded worker pool with per-attempt
// timeouts, retries with exponential backoff and bounded result history.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/metrics"
	"DevelopmentScanner/internal/ports"
)

var (
	// ErrJobNotFound is returned for unknown or evicted job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull is returned by Add when the pending buffer is saturated.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned by Add once the workers' context is done.
	ErrQueueStopped = errors.New("job queue is stopped")
)

// Handler executes one attempt of a job. It must honour ctx and should return
// whatever result it accumulated even when it also returns an error.
type Handler func(ctx context.Context, job domain.CrawlJob, progress func(int)) (*domain.CrawlerResult, error)

// Config tunes the worker pool.
type Config struct {
	Concurrency   int
	JobTimeout    time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	KeepCompleted int
	KeepFailed    int
	// DrainWindow is how long a timed-out handler may take to hand back its
	// partial result before a synthetic one is recorded.
	DrainWindow time.Duration
	Buffer      int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:   3,
		JobTimeout:    60 * time.Second,
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		KeepCompleted: 10,
		KeepFailed:    5,
		DrainWindow:   time.Second,
		Buffer:        256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.KeepCompleted <= 0 {
		c.KeepCompleted = d.KeepCompleted
	}
	if c.KeepFailed <= 0 {
		c.KeepFailed = d.KeepFailed
	}
	if c.DrainWindow <= 0 {
		c.DrainWindow = d.DrainWindow
	}
	if c.Buffer <= 0 {
		c.Buffer = d.Buffer
	}
	return c
}

// Queue dispatches jobs to Config.Concurrency workers.
type Queue struct {
	cfg     Config
	store   ports.JobStore
	handler Handler
	pending chan string
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	completed []string
	failed    []string
	stopped   bool

	wg sync.WaitGroup
}

// Option customises a Queue.
type Option func(*Queue)

// WithLogger attaches a logger.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = log
	}
}

// WithClock overrides the clock used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New builds a Queue. Call Start to launch the workers.
func New(store ports.JobStore, handler Handler, cfg Config, opts ...Option) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:     cfg,
		store:   store,
		handler: handler,
		pending: make(chan string, cfg.Buffer),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers; they exit when ctx is cancelled. After that
// Add is rejected and jobs still buffered are marked failed.
func (q *Queue) Start(ctx context.Context) {
	if done := ctx.Done(); done != nil {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			<-done
			q.mu.Lock()
			q.stopped = true
			q.mu.Unlock()
			q.drainPending()
		}()
	}
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			q.debug("worker started", "worker", worker)
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-q.pending:
					q.process(ctx, id)
				}
			}
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Add records a waiting job and hands it to the pool without blocking.
func (q *Queue) Add(ctx context.Context, data domain.JobData) (string, error) {
	if q.isStopped() {
		return "", ErrQueueStopped
	}
	now := q.now()
	job := domain.CrawlJob{
		ID:        uuid.NewString(),
		Data:      data,
		Status:    domain.JobWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	q.mu.Lock()
	err := ErrQueueStopped
	if !q.stopped {
		select {
		case q.pending <- job.ID:
			err = nil
		default:
			err = ErrQueueFull
		}
	}
	q.mu.Unlock()

	if err != nil {
		_ = q.store.Delete(ctx, job.ID)
		return "", err
	}
	q.debug("job queued", "job_id", job.ID, "area_id", data.AreaID)
	return job.ID, nil
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// drainPending fails jobs no worker will pick up any more.
func (q *Queue) drainPending() {
	ctx := context.Background()
	for {
		select {
		case id := <-q.pending:
			stored, err := q.store.Get(ctx, id)
			if err != nil || stored == nil {
				continue
			}
			q.finish(ctx, &tracker{job: *stored}, nil, ErrQueueStopped)
		default:
			return
		}
	}
}

// Job returns the stored record of id.
func (q *Queue) Job(ctx context.Context, id string) (*domain.CrawlJob, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// Status returns the lifecycle state of id.
func (q *Queue) Status(ctx context.Context, id string) (domain.JobStatus, error) {
	job, err := q.Job(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// Result returns the result of a terminal job, or nil while it is running.
func (q *Queue) Result(ctx context.Context, id string) (*domain.CrawlerResult, error) {
	job, err := q.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, nil
	}
	return job.Result, nil
}

// tracker serialises writes to one job so late progress reports from an
// abandoned attempt never overwrite a newer state.
type tracker struct {
	mu      sync.Mutex
	job     domain.CrawlJob
	attempt int
	closed  bool
}

func (q *Queue) process(ctx context.Context, id string) {
	stored, err := q.store.Get(ctx, id)
	if err != nil || stored == nil {
		q.warn("job vanished before processing", "job_id", id, "error", err)
		return
	}
	tr := &tracker{job: *stored}

	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		q.transition(ctx, tr, func(j *domain.CrawlJob) {
			tr.attempt = attempt
			j.Status = domain.JobProcessing
			j.Attempts = attempt
			j.Progress = 0
		})
		metrics.JobAttempts.Inc()

		started := time.Now()
		res, err := q.runAttempt(ctx, tr, attempt)
		metrics.JobDuration.Observe(time.Since(started).Seconds())

		if err == nil {
			q.finish(ctx, tr, res, nil)
			return
		}
		retryable := !errors.Is(err, domain.ErrAreaNotFound) && !errors.Is(err, domain.ErrJobTimeout)
		if !retryable || attempt == q.cfg.MaxAttempts || ctx.Err() != nil {
			q.finish(ctx, tr, res, err)
			return
		}

		backoff := q.cfg.BackoffBase << (attempt - 1)
		q.warn("job attempt failed, retrying",
			"job_id", id, "attempt", attempt, "backoff", backoff, "error", err)
		q.transition(ctx, tr, func(j *domain.CrawlJob) {
			j.Status = domain.JobWaiting
			j.FailedReason = err.Error()
		})

		select {
		case <-ctx.Done():
			q.finish(ctx, tr, res, ctx.Err())
			return
		case <-time.After(backoff):
		}
	}
}

type outcome struct {
	res *domain.CrawlerResult
	err error
}

func (q *Queue) runAttempt(ctx context.Context, tr *tracker, attempt int) (*domain.CrawlerResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
	defer cancel()

	tr.mu.Lock()
	job := tr.job
	tr.mu.Unlock()

	progress := func(p int) {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		if tr.closed || tr.attempt != attempt || p <= tr.job.Progress {
			return
		}
		tr.job.Progress = min(p, 100)
		tr.job.UpdatedAt = q.now()
		if err := q.store.Save(ctx, tr.job); err != nil {
			q.warn("save job progress", "job_id", tr.job.ID, "error", err)
		}
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		res, err := q.handler(attemptCtx, job, progress)
		done <- outcome{res: res, err: err}
	}()

	var (
		o        outcome
		returned bool
	)
	select {
	case o = <-done:
		returned = true
	case <-attemptCtx.Done():
	}
	if returned && attemptCtx.Err() == nil {
		return o.res, o.err
	}

	cause := attemptCtx.Err()
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("%w after %s", domain.ErrJobTimeout, q.cfg.JobTimeout)
	}

	if !returned {
		select {
		case o = <-done:
			returned = true
		case <-time.After(q.cfg.DrainWindow):
		}
	}

	res := o.res
	if res == nil {
		res = emptyResult(job)
	}
	if returned && errors.Is(o.err, domain.ErrJobTimeout) {
		return res, o.err
	}
	res.Errors = appendOnce(res.Errors, cause.Error())
	return res, cause
}

func (q *Queue) finish(ctx context.Context, tr *tracker, res *domain.CrawlerResult, err error) {
	tr.mu.Lock()
	if res == nil {
		res = emptyResult(tr.job)
	}
	tr.closed = true
	tr.job.Result = res
	tr.job.UpdatedAt = q.now()
	if err != nil {
		tr.job.Status = domain.JobFailed
		tr.job.FailedReason = err.Error()
	} else {
		tr.job.Status = domain.JobCompleted
		tr.job.Progress = 100
		tr.job.FailedReason = ""
	}
	job := tr.job
	saveErr := q.store.Save(ctx, job)
	tr.mu.Unlock()

	if saveErr != nil {
		q.warn("save finished job", "job_id", job.ID, "error", saveErr)
	}
	metrics.JobsFinished.WithLabelValues(string(job.Status)).Inc()
	if err != nil {
		q.warn("job failed", "job_id", job.ID, "attempts", job.Attempts, "error", err)
	} else {
		q.info("job completed", "job_id", job.ID, "articles", res.TotalArticles, "errors", len(res.Errors))
	}
	q.retain(ctx, job)
}

// retain keeps the most recent KeepCompleted/KeepFailed terminal jobs and
// deletes older ones from the store.
func (q *Queue) retain(ctx context.Context, job domain.CrawlJob) {
	q.mu.Lock()
	var evicted []string
	if job.Status == domain.JobCompleted {
		q.completed = append(q.completed, job.ID)
		if over := len(q.completed) - q.cfg.KeepCompleted; over > 0 {
			evicted = append(evicted, q.completed[:over]...)
			q.completed = append([]string(nil), q.completed[over:]...)
		}
	} else {
		q.failed = append(q.failed, job.ID)
		if over := len(q.failed) - q.cfg.KeepFailed; over > 0 {
			evicted = append(evicted, q.failed[:over]...)
			q.failed = append([]string(nil), q.failed[over:]...)
		}
	}
	q.mu.Unlock()

	for _, id := range evicted {
		if err := q.store.Delete(ctx, id); err != nil {
			q.warn("evict job", "job_id", id, "error", err)
		}
	}
}

func (q *Queue) transition(ctx context.Context, tr *tracker, mutate func(*domain.CrawlJob)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	mutate(&tr.job)
	tr.job.UpdatedAt = q.now()
	if err := q.store.Save(ctx, tr.job); err != nil {
		q.warn("save job state", "job_id", tr.job.ID, "error", err)
	}
}

func emptyResult(job domain.CrawlJob) *domain.CrawlerResult {
	return &domain.CrawlerResult{
		JobID:    job.ID,
		AreaID:   job.Data.AreaID,
		AreaName: job.Data.AreaName,
		Articles: []domain.ProcessedArticle{},
		Errors:   []string{},
	}
}

func appendOnce(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func (q *Queue) debug(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Debug(msg, args...)
	}
}

func (q *Queue) info(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Info(msg, args...)
	}
}

func (q *Queue) warn(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Warn(msg, args...)
	}
}
