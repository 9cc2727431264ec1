package jobqueue

import (
	"context"
	"sync"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

// MemoryStore is a process-local JobStore.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.CrawlJob
}

var _ ports.JobStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]domain.CrawlJob{}}
}

// Save stores a copy of job.
func (s *MemoryStore) Save(_ context.Context, job domain.CrawlJob) error {
	if job.Result != nil {
		res := *job.Result
		job.Result = &res
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// Get returns (nil, nil) for unknown ids.
func (s *MemoryStore) Get(_ context.Context, jobID string) (*domain.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// Delete drops jobID; unknown ids are ignored.
func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// Len reports how many jobs are retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
