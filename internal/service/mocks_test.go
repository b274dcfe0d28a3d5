package service

import (
	"context"
	"testing"
	"time"

	"sportclub/internal/database"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) UpsertClub(ctx context.Context, c *models.Club) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockRepo) GetClub(ctx context.Context, id int64) (*models.Club, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Club), args.Error(1)
}
func (m *mockRepo) ListClubs(ctx context.Context) ([]*models.Club, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Club), args.Error(1)
}
func (m *mockRepo) CreateFacility(ctx context.Context, f *models.Facility) error {
	return m.Called(ctx, f).Error(0)
}
func (m *mockRepo) GetFacility(ctx context.Context, id int64) (*models.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}
func (m *mockRepo) UpdateFacility(ctx context.Context, f *models.Facility) error {
	return m.Called(ctx, f).Error(0)
}
func (m *mockRepo) ListFacilities(ctx context.Context, clubID int64) ([]*models.Facility, error) {
	args := m.Called(ctx, clubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Facility), args.Error(1)
}
func (m *mockRepo) SyncFacilities(ctx context.Context, fs []*models.Facility) error {
	return m.Called(ctx, fs).Error(0)
}
func (m *mockRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) UpdateBookingStatus(ctx context.Context, id int64, s string) error {
	return m.Called(ctx, id, s).Error(0)
}
func (m *mockRepo) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) CountOverlapping(ctx context.Context, id int64, s, e time.Time, ex *int64) (int, error) {
	args := m.Called(ctx, id, s, e, ex)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) CreateTeam(ctx context.Context, t *models.Team) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockRepo) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Team), args.Error(1)
}
func (m *mockRepo) ListTeams(ctx context.Context, clubID int64) ([]*models.Team, error) {
	args := m.Called(ctx, clubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Team), args.Error(1)
}
func (m *mockRepo) CreateMember(ctx context.Context, mem *models.Member) error {
	return m.Called(ctx, mem).Error(0)
}
func (m *mockRepo) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}
func (m *mockRepo) ListMembers(ctx context.Context, clubID int64) ([]*models.Member, error) {
	args := m.Called(ctx, clubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(t string, p interface{}) error {
	return m.Called(t, p).Error(0)
}

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, tt string, id int64, b *models.Booking, s string) error {
	return m.Called(ctx, tt, id, b, s).Error(0)
}

var nopLogger = zerolog.Nop()

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", &nopLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.UpsertClub(context.Background(), &models.Club{ID: 1, Name: "Rot-Weiss", Timezone: "Europe/Berlin"}))
	require.NoError(t, db.UpsertClub(context.Background(), &models.Club{ID: 2, Name: "Blau-Gelb", Timezone: "UTC"}))
	return db
}

type services struct {
	db           *database.DB
	facilities   *FacilityService
	availability *AvailabilityService
	bookings     *BookingService
	calendar     *CalendarService
	clubs        *ClubService
}

func newServices(t *testing.T, enforce bool) *services {
	t.Helper()
	db := setupDB(t)
	facilities := NewFacilityService(db, nil, &nopLogger)
	bookings := NewBookingService(db, facilities, nil, nil, enforce, &nopLogger)
	return &services{
		db:           db,
		facilities:   facilities,
		availability: NewAvailabilityService(db, facilities, &nopLogger),
		bookings:     bookings,
		calendar:     NewCalendarService(db, bookings, &nopLogger),
		clubs:        NewClubService(db, &nopLogger),
	}
}

func utc(h, m int) time.Time {
	return time.Date(2024, 5, 10, h, m, 0, 0, time.UTC)
}

func int64Ptr(v int64) *int64 { return &v }
