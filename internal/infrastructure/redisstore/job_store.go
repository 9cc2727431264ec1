// Package redisstore keeps crawl job records in Redis so job status survives
// process restarts and can be polled from other instances.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

const connectionTimeout = 5 * time.Second

// Config holds Redis connection settings.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long a job record lives; zero keeps it until evicted.
	TTL time.Duration
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// JobStore serialises CrawlJob records as JSON under "<prefix>:job:<id>".
type JobStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ ports.JobStore = (*JobStore)(nil)

// NewJobStore wraps a Redis client.
func NewJobStore(client redis.Cmdable, prefix string, ttl time.Duration) *JobStore {
	if prefix == "" {
		prefix = "devscanner"
	}
	return &JobStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *JobStore) key(id string) string {
	return s.prefix + ":job:" + id
}

// Save overwrites the record of job.
func (s *JobStore) Save(ctx context.Context, job domain.CrawlJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, s.key(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns (nil, nil) when the job is absent.
func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.CrawlJob, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	var job domain.CrawlJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// Delete removes the record of jobID.
func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.key(jobID)).Err(); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}
