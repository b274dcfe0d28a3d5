package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sportclub/internal/database"
	"sportclub/internal/domain"
	"sportclub/internal/events"
	"sportclub/internal/metrics"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo            domain.Repository
	facilities      *FacilityService
	eventBus        domain.EventPublisher
	sheetsWorker    domain.SyncWorker
	enforceCapacity bool
	logger          *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	facilities *FacilityService,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	enforceCapacity bool,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:            repo,
		facilities:      facilities,
		eventBus:        eventBus,
		sheetsWorker:    sheetsWorker,
		enforceCapacity: enforceCapacity,
		logger:          logger,
	}
}

func (s *BookingService) validate(ctx context.Context, b *models.Booking) error {
	if b.ClubID <= 0 {
		return invalid("clubId is required")
	}
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return invalid("title is required")
	}
	if !models.IsValidType(b.Type) {
		return invalid("unknown booking type %q", b.Type)
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if !models.IsValidStatus(b.Status) {
		return invalid("unknown booking status %q", b.Status)
	}
	if b.StartTime.IsZero() || b.EndTime.IsZero() {
		return invalid("startTime and endTime are required")
	}
	if !b.EndTime.After(b.StartTime) {
		return ErrInvalidTimeRange
	}
	if b.Participants < 0 {
		return invalid("participants must not be negative")
	}
	if b.Cost < 0 {
		return invalid("cost must not be negative")
	}

	if b.FacilityID != nil {
		facility, err := s.facilities.Get(ctx, *b.FacilityID)
		if err != nil {
			return err
		}
		if facility.ClubID != b.ClubID {
			return invalid("facility %d belongs to another club", facility.ID)
		}
	}
	return nil
}

// Create stores a new booking. Capacity is not checked unless enforcement is on,
// in which case the overlap count and the insert share one transaction.
func (s *BookingService) Create(ctx context.Context, b *models.Booking) error {
	if b.ClubID <= 0 {
		return invalid("clubId is required")
	}
	if _, err := s.repo.GetClub(ctx, b.ClubID); err != nil {
		return notFoundAs(err, ErrClubNotFound, "load club")
	}
	if err := s.validate(ctx, b); err != nil {
		return err
	}

	var err error
	if s.enforceCapacity {
		err = s.repo.CreateBookingWithLock(ctx, b)
	} else {
		err = s.repo.CreateBooking(ctx, b)
	}
	switch {
	case errors.Is(err, database.ErrNotAvailable):
		return err
	case errors.Is(err, database.ErrNotFound):
		return ErrFacilityNotFound
	case err != nil:
		return fmt.Errorf("failed to create booking: %w", err)
	}

	metrics.IncBookingMutation("create")
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("club_id", b.ClubID).
		Str("type", b.Type).
		Msg("Booking created")

	s.publishEvent(events.EventBookingCreated, b, "")
	s.enqueueSync(ctx, b, models.SyncTaskUpsert)
	return nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrBookingNotFound, "load booking")
	}
	return b, nil
}

// Update applies a partial change. Only the fields set in patch are touched.
func (s *BookingService) Update(ctx context.Context, id int64, patch models.BookingPatch) (*models.Booking, error) {
	return s.update(ctx, id, patch, events.EventBookingUpdated)
}

func (s *BookingService) update(ctx context.Context, id int64, patch models.BookingPatch, eventType string) (*models.Booking, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	patch.Apply(&updated)
	if err := s.validate(ctx, &updated); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBooking(ctx, &updated); err != nil {
		return nil, notFoundAs(err, ErrBookingNotFound, "update booking")
	}

	metrics.IncBookingMutation("update")
	s.logger.Info().
		Int64("booking_id", id).
		Bool("times_changed", patch.TimesChanged()).
		Str("event_type", eventType).
		Msg("Booking updated")

	s.publishEvent(eventType, &updated, "")
	s.enqueueSync(ctx, &updated, models.SyncTaskUpsert)
	return &updated, nil
}

// ToggleStatus moves a booking to confirmed or cancelled. Capacity is not re-checked,
// so a cancelled booking may come back even if its slot has filled up.
func (s *BookingService) ToggleStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	if status != models.StatusConfirmed && status != models.StatusCancelled {
		return nil, ErrInvalidStatus
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := b.Status

	if err := s.repo.UpdateBookingStatus(ctx, id, status); err != nil {
		return nil, notFoundAs(err, ErrBookingNotFound, "update booking status")
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()

	metrics.IncBookingMutation("status")
	s.logger.Info().
		Int64("booking_id", id).
		Str("from", previous).
		Str("to", status).
		Msg("Booking status changed")

	s.publishEvent(events.EventBookingStatusChanged, b, previous)
	s.enqueueSync(ctx, b, models.SyncTaskUpdateStatus)
	return b, nil
}

// Delete removes the booking for good.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return notFoundAs(err, ErrBookingNotFound, "delete booking")
	}

	metrics.IncBookingMutation("delete")
	s.logger.Info().Int64("booking_id", id).Msg("Booking deleted")

	s.publishEvent(events.EventBookingDeleted, b, "")
	s.enqueueSync(ctx, b, models.SyncTaskDelete)
	return nil
}

func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.ClubID <= 0 {
		return nil, invalid("clubId is required")
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, ErrInvalidTimeRange
	}
	if _, err := s.repo.GetClub(ctx, filter.ClubID); err != nil {
		return nil, notFoundAs(err, ErrClubNotFound, "load club")
	}

	bookings, err := s.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, previousStatus string) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingPayload(b, eventType != events.EventBookingDeleted)
	payload.PreviousStatus = previousStatus

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, b *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == models.SyncTaskUpdateStatus {
		status = b.Status
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, b.ID, b, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
