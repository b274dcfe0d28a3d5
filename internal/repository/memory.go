package repository

import (
	"context"
	"sync"
	"time"

	"sportclub/internal/models"
)

type memoryEntry struct {
	facility  models.Facility
	expiresAt time.Time
}

// MemoryFacilityCache keeps facilities in process, used when Redis is absent or down.
type MemoryFacilityCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryFacilityCache(ttl time.Duration) *MemoryFacilityCache {
	return &MemoryFacilityCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemoryFacilityCache) Get(_ context.Context, id int64) (*models.Facility, error) {
	val, ok := r.entries.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.Delete(id)
		return nil, nil
	}
	f := entry.facility
	return &f, nil
}

func (r *MemoryFacilityCache) Set(_ context.Context, f *models.Facility) error {
	r.entries.Store(f.ID, &memoryEntry{facility: *f, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemoryFacilityCache) Invalidate(_ context.Context, id int64) error {
	r.entries.Delete(id)
	return nil
}
