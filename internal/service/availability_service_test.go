package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sportclub/internal/models"
	"sportclub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createFacility(t *testing.T, s *services, clubID int64, maxConcurrent int) *models.Facility {
	t.Helper()
	f := &models.Facility{ClubID: clubID, Name: "Court", Type: "court", MaxConcurrentBookings: maxConcurrent}
	require.NoError(t, s.facilities.Create(context.Background(), f))
	return f
}

func book(t *testing.T, s *services, facilityID int64, start, end time.Time) *models.Booking {
	t.Helper()
	b := &models.Booking{
		ClubID:     1,
		FacilityID: &facilityID,
		Title:      "Training",
		Type:       models.TypeTraining,
		StartTime:  start,
		EndTime:    end,
	}
	require.NoError(t, s.bookings.Create(context.Background(), b))
	return b
}

func TestAvailability_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newServices(t, false)
	f := createFacility(t, s, 1, 2)

	book(t, s, f.ID, utc(10, 0), utc(11, 0))

	res, err := s.availability.Check(ctx, models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(10, 30), EndTime: utc(11, 30)})
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityResult{Available: true, CurrentBookings: 1, MaxConcurrent: 2}, *res)

	book(t, s, f.ID, utc(10, 30), utc(11, 30))

	res, err = s.availability.Check(ctx, models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(10, 45), EndTime: utc(11, 15)})
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityResult{Available: false, CurrentBookings: 2, MaxConcurrent: 2}, *res)
}

func TestAvailability_FreshFacility(t *testing.T) {
	s := newServices(t, false)
	f := createFacility(t, s, 1, 0)

	res, err := s.availability.Check(context.Background(), models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(9, 0), EndTime: utc(10, 0)})
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, 0, res.CurrentBookings)
	assert.Equal(t, 1, res.MaxConcurrent)
}

func TestAvailability_TouchingAndCancelled(t *testing.T) {
	ctx := context.Background()
	s := newServices(t, false)
	f := createFacility(t, s, 1, 1)

	b := book(t, s, f.ID, utc(10, 0), utc(11, 0))

	// touching ranges do not conflict
	res, err := s.availability.Check(ctx, models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(11, 0), EndTime: utc(12, 0)})
	require.NoError(t, err)
	assert.True(t, res.Available)

	res, err = s.availability.Check(ctx, models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(10, 0), EndTime: utc(11, 0)})
	require.NoError(t, err)
	assert.False(t, res.Available)

	// editing the booking itself
	res, err = s.availability.Check(ctx, models.AvailabilityQuery{
		FacilityID: f.ID, StartTime: utc(10, 15), EndTime: utc(10, 45), ExcludeBookingID: &b.ID,
	})
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, 0, res.CurrentBookings)

	_, err = s.bookings.ToggleStatus(ctx, b.ID, models.StatusCancelled)
	require.NoError(t, err)

	res, err = s.availability.Check(ctx, models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(10, 0), EndTime: utc(11, 0)})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestAvailability_TimezonesCompareAsInstants(t *testing.T) {
	s := newServices(t, false)
	f := createFacility(t, s, 1, 1)
	book(t, s, f.ID, utc(8, 0), utc(9, 0))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 10:30 CEST is 08:30 UTC
	res, err := s.availability.Check(context.Background(), models.AvailabilityQuery{
		FacilityID: f.ID,
		StartTime:  time.Date(2024, 5, 10, 10, 30, 0, 0, berlin),
		EndTime:    time.Date(2024, 5, 10, 11, 30, 0, 0, berlin),
	})
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestAvailability_Validation(t *testing.T) {
	s := newServices(t, false)
	f := createFacility(t, s, 1, 1)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   models.AvailabilityQuery
		wantErr error
	}{
		{"inverted", models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(11, 0), EndTime: utc(10, 0)}, ErrInvalidTimeRange},
		{"empty", models.AvailabilityQuery{FacilityID: f.ID, StartTime: utc(10, 0), EndTime: utc(10, 0)}, ErrInvalidTimeRange},
		{"missing facility", models.AvailabilityQuery{StartTime: utc(10, 0), EndTime: utc(11, 0)}, ErrValidation},
		{"missing times", models.AvailabilityQuery{FacilityID: f.ID}, ErrValidation},
		{"unknown facility", models.AvailabilityQuery{FacilityID: 999, StartTime: utc(10, 0), EndTime: utc(11, 0)}, ErrFacilityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.availability.Check(ctx, tt.query)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.ErrorIs(t, ErrInvalidTimeRange, ErrValidation)
}

func TestAvailability_CheckBulk(t *testing.T) {
	s := newServices(t, false)
	f := createFacility(t, s, 1, 1)
	book(t, s, f.ID, utc(10, 0), utc(11, 0))

	results, err := s.availability.CheckBulk(context.Background(), []models.AvailabilityQuery{
		{FacilityID: f.ID, StartTime: utc(9, 0), EndTime: utc(10, 0)},
		{FacilityID: 404, StartTime: utc(9, 0), EndTime: utc(10, 0)},
		{FacilityID: f.ID, StartTime: utc(10, 30), EndTime: utc(12, 0)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Result.Available)
	assert.False(t, results[1].Result.Available)

	_, err = s.availability.CheckBulk(context.Background(), []models.AvailabilityQuery{
		{FacilityID: f.ID, StartTime: utc(12, 0), EndTime: utc(9, 0)},
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestAvailability_StorageErrorSurfaces(t *testing.T) {
	repo := new(mockRepo)
	facilities := NewFacilityService(repo, nil, &nopLogger)
	svc := NewAvailabilityService(repo, facilities, &nopLogger)
	ctx := context.Background()

	repo.On("GetFacility", ctx, int64(1)).Return(&models.Facility{ID: 1, MaxConcurrentBookings: 3}, nil).Once()
	repo.On("CountOverlapping", ctx, int64(1), utc(9, 0), utc(10, 0), (*int64)(nil)).Return(0, errors.New("disk I/O error")).Once()

	_, err := svc.Check(ctx, models.AvailabilityQuery{FacilityID: 1, StartTime: utc(9, 0), EndTime: utc(10, 0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	repo.AssertExpectations(t)
}

func TestFacilityService_CacheReadThrough(t *testing.T) {
	repo := new(mockRepo)
	cache := repository.NewMemoryFacilityCache(time.Minute)
	svc := NewFacilityService(repo, cache, &nopLogger)
	ctx := context.Background()

	f := &models.Facility{ID: 7, ClubID: 1, Name: "Pool", MaxConcurrentBookings: 4, Status: models.FacilityAvailable}
	repo.On("GetFacility", ctx, int64(7)).Return(f, nil).Once()

	for i := 0; i < 3; i++ {
		got, err := svc.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 4, got.MaxConcurrentBookings)
	}
	repo.AssertExpectations(t)

	repo.On("UpdateFacility", ctx, mock.AnythingOfType("*models.Facility")).Return(nil).Once()
	repo.On("GetFacility", ctx, int64(7)).Return(f, nil).Once()
	_, err := svc.Update(ctx, 7, &models.Facility{Name: "Pool", MaxConcurrentBookings: 6})
	require.NoError(t, err)

	cached, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestFacilityService_Validation(t *testing.T) {
	s := newServices(t, false)
	ctx := context.Background()

	err := s.facilities.Create(ctx, &models.Facility{ClubID: 1, Name: "Gym", MaxConcurrentBookings: -1})
	assert.ErrorIs(t, err, ErrValidation)

	err = s.facilities.Create(ctx, &models.Facility{ClubID: 1, Name: " ", MaxConcurrentBookings: 1})
	assert.ErrorIs(t, err, ErrValidation)

	err = s.facilities.Create(ctx, &models.Facility{ClubID: 1, Name: "Gym", Capacity: -5})
	assert.ErrorIs(t, err, ErrValidation)

	err = s.facilities.Create(ctx, &models.Facility{ClubID: 42, Name: "Gym"})
	assert.ErrorIs(t, err, ErrClubNotFound)

	f := &models.Facility{ClubID: 1, Name: "Gym"}
	require.NoError(t, s.facilities.Create(ctx, f))
	assert.Equal(t, 1, f.MaxConcurrentBookings)
	assert.Equal(t, models.FacilityAvailable, f.Status)

	updated, err := s.facilities.Update(ctx, f.ID, &models.Facility{Name: "Gym", MaxConcurrentBookings: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MaxConcurrentBookings)

	_, err = s.facilities.Update(ctx, 999, &models.Facility{Name: "Gym"})
	assert.ErrorIs(t, err, ErrFacilityNotFound)

	list, err := s.facilities.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFacilityService_SyncDropsCachedLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db := setupDB(t)
	facilities := NewFacilityService(db, repository.NewRedisFacilityCache(client, 10*time.Minute), &nopLogger)
	availability := NewAvailabilityService(db, facilities, &nopLogger)
	ctx := context.Background()
	q := models.AvailabilityQuery{FacilityID: 5, StartTime: utc(9, 0), EndTime: utc(10, 0)}

	require.NoError(t, facilities.Sync(ctx, []*models.Facility{{ID: 5, ClubID: 1, Name: "Hall", MaxConcurrentBookings: 1}}))
	res, err := availability.Check(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MaxConcurrent)
	assert.True(t, mr.Exists("facility:5"))

	require.NoError(t, facilities.Sync(ctx, []*models.Facility{{ID: 5, ClubID: 1, Name: "Hall", MaxConcurrentBookings: 3}}))
	res, err = availability.Check(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, res.MaxConcurrent)
}

func TestFacilityService_SyncRequiresID(t *testing.T) {
	s := newServices(t, false)
	err := s.facilities.Sync(context.Background(), []*models.Facility{{ClubID: 1, Name: "Hall"}})
	assert.ErrorIs(t, err, ErrValidation)
}
