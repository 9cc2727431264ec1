package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DevelopmentScanner/internal/domain"
)

func testConfig() Config {
	return Config{
		Concurrency:   2,
		JobTimeout:    time.Second,
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		KeepCompleted: 10,
		KeepFailed:    5,
		DrainWindow:   50 * time.Millisecond,
		Buffer:        16,
	}
}

func startQueue(t *testing.T, cfg Config, h Handler) (*Queue, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	q := New(store, h, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		q.Wait()
	})
	return q, store
}

func waitTerminal(t *testing.T, q *Queue, id string) *domain.CrawlJob {
	t.Helper()
	var job *domain.CrawlJob
	require.Eventually(t, func() bool {
		j, err := q.Job(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 3*time.Second, 5*time.Millisecond)
	return job
}

func okResult(job domain.CrawlJob) *domain.CrawlerResult {
	return &domain.CrawlerResult{JobID: job.ID, AreaID: job.Data.AreaID, Articles: []domain.ProcessedArticle{}, Errors: []string{}}
}

func TestQueueCompletesJob(t *testing.T) {
	t.Parallel()
	q, _ := startQueue(t, testConfig(), func(_ context.Context, job domain.CrawlJob, progress func(int)) (*domain.CrawlerResult, error) {
		progress(50)
		return okResult(job), nil
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "tampines", AreaName: "Tampines"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 1, job.Attempts)

	res, err := q.Result(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "tampines", res.AreaID)
}

func TestQueueRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	q, _ := startQueue(t, testConfig(), func(_ context.Context, job domain.CrawlJob, _ func(int)) (*domain.CrawlerResult, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("database unavailable")
		}
		return okResult(job), nil
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Empty(t, job.FailedReason)
}

func TestQueueFailsAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	q, _ := startQueue(t, testConfig(), func(context.Context, domain.CrawlJob, func(int)) (*domain.CrawlerResult, error) {
		calls.Add(1)
		return nil, errors.New("database unavailable")
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, job.FailedReason, "database unavailable")
	require.NotNil(t, job.Result)
}

func TestQueueDoesNotRetryMissingArea(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	q, _ := startQueue(t, testConfig(), func(context.Context, domain.CrawlJob, func(int)) (*domain.CrawlerResult, error) {
		calls.Add(1)
		return nil, domain.ErrAreaNotFound
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "nowhere"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueueTimesOutUncooperativeHandler(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	cfg := testConfig()
	cfg.JobTimeout = 50 * time.Millisecond
	cfg.DrainWindow = 10 * time.Millisecond
	q, _ := startQueue(t, cfg, func(context.Context, domain.CrawlJob, func(int)) (*domain.CrawlerResult, error) {
		<-release
		return nil, nil
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.FailedReason, domain.ErrJobTimeout.Error())
	require.NotNil(t, job.Result)
	require.Len(t, job.Result.Errors, 1)
	assert.Contains(t, job.Result.Errors[0], domain.ErrJobTimeout.Error())
}

func TestQueueKeepsPartialResultOnTimeout(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.JobTimeout = 50 * time.Millisecond
	q, _ := startQueue(t, cfg, func(ctx context.Context, job domain.CrawlJob, _ func(int)) (*domain.CrawlerResult, error) {
		res := okResult(job)
		res.Articles = append(res.Articles, domain.ProcessedArticle{RawArticle: domain.RawArticle{Title: "partial"}})
		res.TotalArticles = 1
		<-ctx.Done()
		return res, nil
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobFailed, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.TotalArticles)
	assert.Len(t, job.Result.Errors, 1)
}

func TestQueueRecoversPanics(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MaxAttempts = 1
	q, _ := startQueue(t, cfg, func(context.Context, domain.CrawlJob, func(int)) (*domain.CrawlerResult, error) {
		panic("boom")
	})

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	job := waitTerminal(t, q, id)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.FailedReason, "boom")
}

func TestQueueEvictsOldHistory(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.KeepCompleted = 2
	q, store := startQueue(t, cfg, func(_ context.Context, job domain.CrawlJob, _ func(int)) (*domain.CrawlerResult, error) {
		return okResult(job), nil
	})

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	waitTerminal(t, q, ids[3])

	require.Eventually(t, func() bool { return store.Len() == 2 }, time.Second, 5*time.Millisecond)
	_, err := q.Status(context.Background(), ids[0])
	assert.ErrorIs(t, err, ErrJobNotFound)
	status, err := q.Status(context.Background(), ids[3])
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, status)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Buffer = 1
	q := New(NewMemoryStore(), func(context.Context, domain.CrawlJob, func(int)) (*domain.CrawlerResult, error) {
		return nil, nil
	}, cfg)

	_, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)
	_, err = q.Add(context.Background(), domain.JobData{AreaID: "b"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestResultNilWhileRunning(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	q := New(NewMemoryStore(), nil, cfg)

	id, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)

	res, err := q.Result(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestQueueRejectsJobsAfterShutdown(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Concurrency = 1
	store := NewMemoryStore()
	q := New(store, func(ctx context.Context, job domain.CrawlJob, _ func(int)) (*domain.CrawlerResult, error) {
		<-ctx.Done()
		return okResult(job), ctx.Err()
	}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	running, err := q.Add(context.Background(), domain.JobData{AreaID: "a"})
	require.NoError(t, err)
	queued, err := q.Add(context.Background(), domain.JobData{AreaID: "b"})
	require.NoError(t, err)

	cancel()
	q.Wait()

	_, err = q.Add(context.Background(), domain.JobData{AreaID: "c"})
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.Equal(t, 2, store.Len())

	for _, id := range []string{running, queued} {
		status, err := q.Status(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobFailed, status, id)
	}
}
