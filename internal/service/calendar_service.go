package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"sportclub/internal/domain"
	"sportclub/internal/events"
	"sportclub/internal/models"
	"sportclub/internal/scheduling"

	"github.com/rs/zerolog"
)

// DayLayout is one day of a club calendar, ready to draw.
type DayLayout struct {
	Date     string                 `json:"date"`
	Timezone string                 `json:"timezone"`
	Items    []scheduling.Placement `json:"items"`
	AllDay   []scheduling.Item      `json:"allDay"`
}

// DropTarget is where a booking was dropped. A nil Hour is a month-view day drop.
type DropTarget struct {
	Date time.Time `json:"date"`
	Hour *float64  `json:"hour,omitempty"`
}

type CalendarService struct {
	repo     domain.Repository
	bookings *BookingService
	logger   *zerolog.Logger
}

func NewCalendarService(repo domain.Repository, bookings *BookingService, logger *zerolog.Logger) *CalendarService {
	return &CalendarService{
		repo:     repo,
		bookings: bookings,
		logger:   logger,
	}
}

func (s *CalendarService) club(ctx context.Context, clubID int64) (*models.Club, error) {
	if clubID <= 0 {
		return nil, invalid("clubId is required")
	}
	club, err := s.repo.GetClub(ctx, clubID)
	if err != nil {
		return nil, notFoundAs(err, ErrClubNotFound, "load club")
	}
	return club, nil
}

// DayLayout lays out the bookings of day, as seen in the club's timezone, plus member
// birthdays as all-day entries.
func (s *CalendarService) DayLayout(ctx context.Context, clubID int64, day time.Time, facilityID *int64) (*DayLayout, error) {
	club, err := s.club(ctx, clubID)
	if err != nil {
		return nil, err
	}
	loc := club.Location()

	y, m, d := day.In(loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{
		ClubID:     clubID,
		FacilityID: facilityID,
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	items := make([]scheduling.Item, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingItem(b))
	}

	members, err := s.repo.ListMembers(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	items = append(items, birthdayItems(members, from, to)...)

	timed, allDay := scheduling.SplitAllDay(items)
	return &DayLayout{
		Date:     from.Format("2006-01-02"),
		Timezone: loc.String(),
		Items:    scheduling.Layout(timed, from, loc),
		AllDay:   allDay,
	}, nil
}

// Reschedule moves a booking to the drop target. The duration is kept and capacity is
// not re-checked.
func (s *CalendarService) Reschedule(ctx context.Context, bookingID int64, target DropTarget) (*models.Booking, error) {
	if target.Date.IsZero() {
		return nil, invalid("date is required")
	}

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	club, err := s.club(ctx, b.ClubID)
	if err != nil {
		return nil, err
	}

	start, end, err := scheduling.Reschedule(scheduling.RescheduleInput{
		OldStart: b.StartTime,
		OldEnd:   b.EndTime,
		Date:     target.Date,
		Hour:     target.Hour,
		Location: club.Location(),
	})
	if errors.Is(err, scheduling.ErrInvalidRange) {
		return nil, ErrInvalidTimeRange
	}
	if err != nil {
		return nil, err
	}

	return s.bookings.update(ctx, bookingID, models.BookingPatch{
		StartTime: &start,
		EndTime:   &end,
	}, events.EventBookingRescheduled)
}

func bookingItem(b *models.Booking) scheduling.Item {
	return scheduling.Item{
		ID:         b.ID,
		Kind:       scheduling.KindBooking,
		Title:      b.Title,
		Start:      b.StartTime,
		End:        b.EndTime,
		FacilityID: b.FacilityID,
		Type:       b.Type,
		Status:     b.Status,
	}
}

// birthdayItems returns an all-day entry for every member born on the day starting at
// from. Members born on 29 February are shown on 28 February in common years.
func birthdayItems(members []*models.Member, from, to time.Time) []scheduling.Item {
	var items []scheduling.Item
	for _, m := range members {
		if m.BirthDate == nil || !birthdayOn(*m.BirthDate, from) {
			continue
		}
		items = append(items, scheduling.Item{
			ID:     -m.ID,
			Kind:   scheduling.KindBirthday,
			Title:  "Birthday: " + m.FullName(),
			Start:  from,
			End:    to,
			AllDay: true,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items
}

func birthdayOn(birth, day time.Time) bool {
	_, bm, bd := birth.Date()
	y, dm, dd := day.Date()
	if bm == time.February && bd == 29 && !isLeap(y) {
		bd = 28
	}
	return bm == dm && bd == dd
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
