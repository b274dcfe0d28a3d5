package domain

import (
	"context"
	"time"

	"sportclub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	UpsertClub(ctx context.Context, club *models.Club) error
	GetClub(ctx context.Context, id int64) (*models.Club, error)
	ListClubs(ctx context.Context) ([]*models.Club, error)

	CreateFacility(ctx context.Context, f *models.Facility) error
	GetFacility(ctx context.Context, id int64) (*models.Facility, error)
	UpdateFacility(ctx context.Context, f *models.Facility) error
	ListFacilities(ctx context.Context, clubID int64) ([]*models.Facility, error)
	SyncFacilities(ctx context.Context, facilities []*models.Facility) error

	CreateBooking(ctx context.Context, booking *models.Booking) error
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	DeleteBooking(ctx context.Context, id int64) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	CountOverlapping(ctx context.Context, facilityID int64, start, end time.Time, excludeID *int64) (int, error)

	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id int64) (*models.Team, error)
	ListTeams(ctx context.Context, clubID int64) ([]*models.Team, error)
	CreateMember(ctx context.Context, m *models.Member) error
	GetMember(ctx context.Context, id int64) (*models.Member, error)
	ListMembers(ctx context.Context, clubID int64) ([]*models.Member, error)
}

// FacilityCache is a read-through cache in front of the facility registry.
// Get returns (nil, nil) on a miss.
type FacilityCache interface {
	Get(ctx context.Context, id int64) (*models.Facility, error)
	Set(ctx context.Context, f *models.Facility) error
	Invalidate(ctx context.Context, id int64) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier interface {
	NotifyBooking(ctx context.Context, eventType string, booking *models.Booking) error
}
