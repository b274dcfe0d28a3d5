package service

import (
	"context"
	"fmt"
	"strings"

	"sportclub/internal/domain"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
)

// FacilityService is the facility registry. Reads go through the cache when one is set.
type FacilityService struct {
	repo   domain.Repository
	cache  domain.FacilityCache
	logger *zerolog.Logger
}

func NewFacilityService(repo domain.Repository, cache domain.FacilityCache, logger *zerolog.Logger) *FacilityService {
	return &FacilityService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func normalizeFacility(f *models.Facility) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return invalid("facility name is required")
	}
	if f.Capacity < 0 {
		return invalid("capacity must not be negative")
	}
	switch {
	case f.MaxConcurrentBookings == 0:
		f.MaxConcurrentBookings = models.DefaultMaxConcurrentBookings
	case f.MaxConcurrentBookings < 0:
		return invalid("maxConcurrentBookings must be at least 1")
	}
	switch f.Status {
	case "":
		f.Status = models.FacilityAvailable
	case models.FacilityAvailable, models.FacilityUnavailable:
	default:
		return invalid("unknown facility status %q", f.Status)
	}
	return nil
}

func (s *FacilityService) Create(ctx context.Context, f *models.Facility) error {
	if _, err := s.repo.GetClub(ctx, f.ClubID); err != nil {
		return notFoundAs(err, ErrClubNotFound, "load club")
	}
	if err := normalizeFacility(f); err != nil {
		return err
	}
	if err := s.repo.CreateFacility(ctx, f); err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}
	s.logger.Info().Int64("facility_id", f.ID).Int64("club_id", f.ClubID).Msg("Facility created")
	return nil
}

// Update replaces the mutable fields of facility id. The owning club never changes.
func (s *FacilityService) Update(ctx context.Context, id int64, f *models.Facility) (*models.Facility, error) {
	existing, err := s.repo.GetFacility(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrFacilityNotFound, "load facility")
	}

	updated := *existing
	updated.Name = f.Name
	updated.Type = f.Type
	updated.Capacity = f.Capacity
	updated.MaxConcurrentBookings = f.MaxConcurrentBookings
	updated.Status = f.Status
	if err := normalizeFacility(&updated); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFacility(ctx, &updated); err != nil {
		return nil, notFoundAs(err, ErrFacilityNotFound, "update facility")
	}
	s.invalidate(ctx, id)
	return &updated, nil
}

// Sync upserts facilities by id, as loaded from a seed file, and drops their
// cache entries so checks see the new limits at once.
func (s *FacilityService) Sync(ctx context.Context, facilities []*models.Facility) error {
	for _, f := range facilities {
		if f.ID <= 0 {
			return invalid("facility %q: id is required", f.Name)
		}
		if err := normalizeFacility(f); err != nil {
			return fmt.Errorf("facility %d: %w", f.ID, err)
		}
	}
	if err := s.repo.SyncFacilities(ctx, facilities); err != nil {
		return fmt.Errorf("failed to sync facilities: %w", err)
	}
	for _, f := range facilities {
		s.invalidate(ctx, f.ID)
	}
	return nil
}

func (s *FacilityService) Get(ctx context.Context, id int64) (*models.Facility, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Int64("facility_id", id).Msg("Facility cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	f, err := s.repo.GetFacility(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrFacilityNotFound, "load facility")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, f); err != nil {
			s.logger.Warn().Err(err).Int64("facility_id", id).Msg("Facility cache write failed")
		}
	}
	return f, nil
}

func (s *FacilityService) List(ctx context.Context, clubID int64) ([]*models.Facility, error) {
	if _, err := s.repo.GetClub(ctx, clubID); err != nil {
		return nil, notFoundAs(err, ErrClubNotFound, "load club")
	}
	facilities, err := s.repo.ListFacilities(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

func (s *FacilityService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn().Err(err).Int64("facility_id", id).Msg("Facility cache invalidate failed")
	}
}
