package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

// MemoryRepository keeps areas and developments in process memory. It backs
// offline runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	areas map[string]domain.Area
	devs  []domain.Development
	now   func() time.Time
}

var (
	_ ports.AreaRepository        = (*MemoryRepository)(nil)
	_ ports.DevelopmentRepository = (*MemoryRepository)(nil)
)

// NewMemoryRepository seeds the store with areas.
func NewMemoryRepository(areas ...domain.Area) *MemoryRepository {
	r := &MemoryRepository{areas: map[string]domain.Area{}, now: time.Now}
	for _, a := range areas {
		r.areas[a.ID] = a
	}
	return r
}

// UpsertArea adds or replaces an area.
func (r *MemoryRepository) UpsertArea(_ context.Context, area domain.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.areas[area.ID] = area
	return nil
}

// FindByID returns (nil, nil) when the area is unknown.
func (r *MemoryRepository) FindByID(_ context.Context, areaID string) (*domain.Area, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.areas[areaID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Create stores dev with a fresh id and timestamps.
func (r *MemoryRepository) Create(_ context.Context, dev domain.Development) (domain.Development, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	dev.ID = uuid.NewString()
	dev.CreatedAt, dev.UpdatedAt = now, now
	r.devs = append(r.devs, dev)
	return dev, nil
}

// FindDuplicateDevelopments matches on the area plus either the title
// (case-insensitive) or the source URL.
func (r *MemoryRepository) FindDuplicateDevelopments(_ context.Context, areaID, title, sourceURL string) ([]domain.Development, error) {
	return r.filter(func(d domain.Development) bool {
		return d.AreaID == areaID && (strings.EqualFold(d.Title, title) || d.SourceURL == sourceURL)
	}), nil
}

// FindByAreaID lists an area's developments, newest first.
func (r *MemoryRepository) FindByAreaID(_ context.Context, areaID string) ([]domain.Development, error) {
	return r.filter(func(d domain.Development) bool { return d.AreaID == areaID }), nil
}

// FindAll lists every development, newest first.
func (r *MemoryRepository) FindAll(context.Context) ([]domain.Development, error) {
	return r.filter(func(domain.Development) bool { return true }), nil
}

// BulkUpsert updates records sharing (area, title, source URL) in place and
// appends the rest.
func (r *MemoryRepository) BulkUpsert(_ context.Context, devs []domain.Development) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()

	written := 0
	for _, d := range collapseUpsertKeys(devs) {
		idx := -1
		for i, existing := range r.devs {
			if existing.AreaID == d.AreaID && existing.Title == d.Title && existing.SourceURL == d.SourceURL {
				idx = i
				break
			}
		}
		if idx >= 0 {
			d.ID, d.CreatedAt = r.devs[idx].ID, r.devs[idx].CreatedAt
			d.UpdatedAt = now
			r.devs[idx] = d
		} else {
			if d.ID == "" {
				d.ID = uuid.NewString()
			}
			d.CreatedAt, d.UpdatedAt = now, now
			r.devs = append(r.devs, d)
		}
		written++
	}
	return written, nil
}

func (r *MemoryRepository) filter(keep func(domain.Development) bool) []domain.Development {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Development{}
	for _, d := range r.devs {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
