package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sportclub/internal/domain"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverFacilityCache serves from primary until it errors, then from fallback,
// probing primary again once per recoveryInterval.
//
// Ids whose primary invalidation failed are kept in stale and invalidated on
// primary before it serves again, so a recovered primary never returns an entry
// that was replaced while it was down.
type FailoverFacilityCache struct {
	primary  domain.FacilityCache
	fallback domain.FacilityCache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time

	staleMu sync.Mutex
	stale   map[int64]struct{}
}

func NewFailoverFacilityCache(primary, fallback domain.FacilityCache, logger *zerolog.Logger) *FailoverFacilityCache {
	return &FailoverFacilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		stale:    make(map[int64]struct{}),
	}
}

func (r *FailoverFacilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary facility cache failed, falling back to memory")
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	r.isDown.Store(true)
}

// usePrimary reports whether the call should go to primary.
func (r *FailoverFacilityCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverFacilityCache) Get(ctx context.Context, id int64) (*models.Facility, error) {
	if r.usePrimary() {
		f, err := r.primaryGet(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return f, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, id)
}

func (r *FailoverFacilityCache) primaryGet(ctx context.Context, id int64) (*models.Facility, error) {
	if err := r.flushStale(ctx); err != nil {
		return nil, err
	}
	return r.primary.Get(ctx, id)
}

func (r *FailoverFacilityCache) Set(ctx context.Context, f *models.Facility) error {
	if r.usePrimary() {
		err := r.flushStale(ctx)
		if err == nil {
			err = r.primary.Set(ctx, f)
		}
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, f)
}

// Invalidate clears both tiers. A primary failure is remembered and retried.
func (r *FailoverFacilityCache) Invalidate(ctx context.Context, id int64) error {
	_ = r.fallback.Invalidate(ctx, id)
	if err := r.primary.Invalidate(ctx, id); err != nil {
		r.addStale(id)
		r.markDown(err)
	}
	return nil
}

func (r *FailoverFacilityCache) addStale(id int64) {
	r.staleMu.Lock()
	r.stale[id] = struct{}{}
	r.staleMu.Unlock()
}

// flushStale invalidates the remembered ids on primary, stopping at the first error.
func (r *FailoverFacilityCache) flushStale(ctx context.Context) error {
	r.staleMu.Lock()
	defer r.staleMu.Unlock()
	for id := range r.stale {
		if err := r.primary.Invalidate(ctx, id); err != nil {
			return err
		}
		delete(r.stale, id)
	}
	return nil
}
