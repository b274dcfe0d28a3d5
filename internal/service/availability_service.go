package service

import (
	"context"
	"errors"
	"fmt"

	"sportclub/internal/domain"
	"sportclub/internal/metrics"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityService answers whether a candidate range fits on a facility.
// It is read-only and reserves nothing.
type AvailabilityService struct {
	repo       domain.Repository
	facilities *FacilityService
	logger     *zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, facilities *FacilityService, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo:       repo,
		facilities: facilities,
		logger:     logger,
	}
}

func validateQuery(q models.AvailabilityQuery) error {
	if q.FacilityID <= 0 {
		return invalid("facilityId is required")
	}
	if q.StartTime.IsZero() || q.EndTime.IsZero() {
		return invalid("startTime and endTime are required")
	}
	if !q.EndTime.After(q.StartTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

func (s *AvailabilityService) Check(ctx context.Context, q models.AvailabilityQuery) (*models.AvailabilityResult, error) {
	res, err := s.check(ctx, q)
	switch {
	case err != nil:
		metrics.IncAvailabilityCheck(metrics.ResultError)
	case res.Available:
		metrics.IncAvailabilityCheck(metrics.ResultAvailable)
	default:
		metrics.IncAvailabilityCheck(metrics.ResultUnavailable)
	}
	return res, err
}

func (s *AvailabilityService) check(ctx context.Context, q models.AvailabilityQuery) (*models.AvailabilityResult, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	facility, err := s.facilities.Get(ctx, q.FacilityID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.CountOverlapping(ctx, q.FacilityID, q.StartTime, q.EndTime, q.ExcludeBookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to count overlapping bookings: %w", err)
	}

	maxConcurrent := facility.MaxConcurrentBookings
	if maxConcurrent < 1 {
		maxConcurrent = models.DefaultMaxConcurrentBookings
	}

	res := &models.AvailabilityResult{
		Available:       current < maxConcurrent,
		CurrentBookings: current,
		MaxConcurrent:   maxConcurrent,
	}
	s.logger.Debug().
		Int64("facility_id", q.FacilityID).
		Time("start", q.StartTime).
		Time("end", q.EndTime).
		Int("current", current).
		Int("max", maxConcurrent).
		Msg("Availability checked")
	return res, nil
}

// CheckBulk evaluates each query independently. Queries for unknown facilities are
// skipped; any other failure aborts the batch.
func (s *AvailabilityService) CheckBulk(ctx context.Context, queries []models.AvailabilityQuery) ([]models.BulkAvailabilityResult, error) {
	results := make([]models.BulkAvailabilityResult, 0, len(queries))
	for i, q := range queries {
		res, err := s.Check(ctx, q)
		if errors.Is(err, ErrFacilityNotFound) {
			s.logger.Debug().Int64("facility_id", q.FacilityID).Msg("Bulk availability: unknown facility skipped")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		results = append(results, models.BulkAvailabilityResult{Query: q, Result: *res})
	}
	return results, nil
}
