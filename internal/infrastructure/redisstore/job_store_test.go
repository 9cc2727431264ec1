package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DevelopmentScanner/internal/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) (*JobStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJobStore(client, "test", ttl), s
}

func TestJobStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t, 0)
	ctx := context.Background()
	created := time.Date(2026, time.October, 16, 2, 0, 0, 0, time.UTC)

	job := domain.CrawlJob{
		ID:        "job-1",
		Data:      domain.JobData{AreaID: "tampines", AreaName: "Tampines", Query: "Tampines development"},
		Status:    domain.JobCompleted,
		Progress:  100,
		Attempts:  1,
		Result:    &domain.CrawlerResult{JobID: "job-1", AreaID: "tampines", TotalArticles: 2, Errors: []string{"source rss: timeout"}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, store.Save(ctx, job))
	assert.True(t, mr.Exists("test:job:job-1"))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.Equal(t, "Tampines development", got.Data.Query)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"source rss: timeout"}, got.Result.Errors)
	assert.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, "job-1"))
	missing, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobStoreAppliesTTL(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t, time.Hour)

	require.NoError(t, store.Save(context.Background(), domain.CrawlJob{ID: "job-2", Status: domain.JobWaiting}))
	assert.Equal(t, time.Hour, mr.TTL("test:job:job-2"))

	mr.FastForward(2 * time.Hour)
	got, err := store.Get(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobStoreReportsCorruptRecords(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t, 0)
	require.NoError(t, mr.Set("test:job:bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode job bad")
}
