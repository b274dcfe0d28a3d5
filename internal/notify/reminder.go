package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sportclub/internal/domain"
	"sportclub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const defaultReminderTime = "18:00"

// BookingLister is the read side the reminder needs.
type BookingLister interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

// Reminder posts the next day's bookings to each club chat once a day, at the
// configured local time of that club.
type Reminder struct {
	sender    domain.TelegramSender
	bookings  BookingLister
	chats     map[int64]int64
	locations map[int64]*time.Location
	hour      int
	minute    int
	logger    *zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[int64]string
}

// NewReminder parses reminderTime as HH:MM; empty means 18:00.
func NewReminder(
	sender domain.TelegramSender,
	bookings BookingLister,
	chats map[int64]int64,
	locations map[int64]*time.Location,
	reminderTime string,
	logger *zerolog.Logger,
) (*Reminder, error) {
	if reminderTime == "" {
		reminderTime = defaultReminderTime
	}
	var hour, minute int
	if _, err := fmt.Sscanf(reminderTime, "%d:%d", &hour, &minute); err != nil ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid reminder time %q, want HH:MM", reminderTime)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reminder{
		sender:    sender,
		bookings:  bookings,
		chats:     chats,
		locations: locations,
		hour:      hour,
		minute:    minute,
		logger:    logger,
		now:       time.Now,
		lastSent:  make(map[int64]string),
	}, nil
}

// Start checks every minute until ctx is done.
func (r *Reminder) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick sends the digest of every club whose local reminder time has passed
// today and that has not been served today yet.
func (r *Reminder) tick(ctx context.Context) {
	now := r.now()
	for clubID := range r.chats {
		loc := r.location(clubID)
		local := now.In(loc)
		due := time.Date(local.Year(), local.Month(), local.Day(), r.hour, r.minute, 0, 0, loc)
		if local.Before(due) {
			continue
		}

		today := local.Format("2006-01-02")
		r.mu.Lock()
		sent := r.lastSent[clubID] == today
		r.mu.Unlock()
		if sent {
			continue
		}

		// a failed digest stays due and is retried on the next tick
		if err := r.SendDigest(ctx, clubID, local.AddDate(0, 0, 1)); err != nil {
			r.logger.Error().Err(err).Int64("club_id", clubID).Msg("reminder: send digest error")
			continue
		}
		r.mu.Lock()
		r.lastSent[clubID] = today
		r.mu.Unlock()
	}
}

// SendDigest posts the active bookings of day to the club chat. Days without
// bookings send nothing.
func (r *Reminder) SendDigest(ctx context.Context, clubID int64, day time.Time) error {
	chatID, ok := r.chats[clubID]
	if !ok || chatID == 0 {
		return nil
	}
	loc := r.location(clubID)
	local := day.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	list, err := r.bookings.ListBookings(ctx, models.BookingFilter{ClubID: clubID, From: &from, To: &to})
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	var active []*models.Booking
	for _, b := range list {
		if b.Active() && !b.StartTime.Before(from) {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, FormatDigest(from, active, loc))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := r.sender.Send(msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	r.logger.Info().Int64("club_id", clubID).Int("bookings", len(active)).Msg("Booking digest sent")
	return nil
}

func (r *Reminder) location(clubID int64) *time.Location {
	if loc := r.locations[clubID]; loc != nil {
		return loc
	}
	return time.UTC
}

// FormatDigest renders one MarkdownV2 line per booking, ordered by start.
func FormatDigest(day time.Time, bookings []*models.Booking, loc *time.Location) string {
	sorted := append([]*models.Booking(nil), bookings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	var sb strings.Builder
	sb.WriteString("*" + escape("Tomorrow, "+day.Format("Mon 02.01.2006")) + "*")
	for _, b := range sorted {
		line := b.StartTime.In(loc).Format("15:04") + "–" + b.EndTime.In(loc).Format("15:04") + " " + b.Title
		if b.Status == models.StatusPending {
			line += " (pending)"
		}
		sb.WriteString("\n" + escape(line))
	}
	return sb.String()
}
