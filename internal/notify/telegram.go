// Package notify posts booking notices to club chats.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sportclub/internal/domain"
	"sportclub/internal/events"
	"sportclub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NotifiedEvents are the booking events that produce a chat notice.
var NotifiedEvents = []string{
	events.EventBookingCreated,
	events.EventBookingRescheduled,
	events.EventBookingStatusChanged,
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier sends a short notice to the chat configured for a booking's club.
// Clubs without a chat are skipped silently.
//
// Notices from the event bus are queued and sent by Start, so a slow Telegram API
// never holds up the booking write that published the event.
type TelegramNotifier struct {
	sender    domain.TelegramSender
	chats     map[int64]int64
	locations map[int64]*time.Location
	queue     chan notice
	logger    *zerolog.Logger
}

type notice struct {
	eventType string
	payload   events.BookingEventPayload
}

// noticeQueueSize bounds the pending notices. Notices beyond it are dropped.
const noticeQueueSize = 256

func NewTelegramNotifier(
	sender domain.TelegramSender,
	chats map[int64]int64,
	locations map[int64]*time.Location,
	logger *zerolog.Logger,
) *TelegramNotifier {
	return &TelegramNotifier{
		sender:    sender,
		chats:     chats,
		locations: locations,
		queue:     make(chan notice, noticeQueueSize),
		logger:    logger,
	}
}

// Subscribe registers the notifier on bus for NotifiedEvents.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.HandleEvent, NotifiedEvents...)
}

// HandleEvent queues the notice without waiting for Telegram.
func (n *TelegramNotifier) HandleEvent(event *events.Event) error {
	p, err := events.DecodeBooking(event)
	if err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	select {
	case n.queue <- notice{eventType: event.Type, payload: p}:
	default:
		n.logger.Warn().
			Int64("booking_id", p.BookingID).
			Str("event_type", event.Type).
			Msg("Notice queue full, dropping booking notice")
	}
	return nil
}

// Start sends queued notices until ctx is done.
func (n *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.queue:
			// send logs its own failures
			_ = n.send(item.eventType, item.payload)
		}
	}
}

func (n *TelegramNotifier) NotifyBooking(ctx context.Context, eventType string, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.send(eventType, events.NewBookingPayload(b, false))
}

func (n *TelegramNotifier) send(eventType string, p events.BookingEventPayload) error {
	chatID, ok := n.chats[p.ClubID]
	if !ok || chatID == 0 {
		return nil
	}

	loc := n.locations[p.ClubID]
	msg := tgbotapi.NewMessage(chatID, FormatNotice(eventType, p, loc))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).
			Int64("club_id", p.ClubID).
			Int64("booking_id", p.BookingID).
			Str("event_type", eventType).
			Msg("Failed to send booking notice")
		return fmt.Errorf("send telegram notice: %w", err)
	}
	n.logger.Debug().Int64("chat_id", chatID).Int64("booking_id", p.BookingID).Msg("Booking notice sent")
	return nil
}

// FormatNotice renders the MarkdownV2 text of a booking notice, with times in loc.
func FormatNotice(eventType string, p events.BookingEventPayload, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var headline string
	switch eventType {
	case events.EventBookingCreated:
		headline = "New booking"
	case events.EventBookingRescheduled:
		headline = "Booking moved"
	case events.EventBookingStatusChanged:
		headline = "Booking " + p.Status
	case events.EventBookingDeleted:
		headline = "Booking deleted"
	default:
		headline = "Booking updated"
	}

	start, end := p.StartTime.In(loc), p.EndTime.In(loc)
	when := start.Format("Mon 02.01.2006 15:04") + "–" + end.Format("15:04")
	if start.YearDay() != end.YearDay() || start.Year() != end.Year() {
		when = start.Format("02.01.2006 15:04") + " – " + end.Format("02.01.2006 15:04")
	}

	var sb strings.Builder
	sb.WriteString("*" + escape(headline) + "*\n")
	sb.WriteString(escape(p.Title) + "\n")
	sb.WriteString(escape(when))
	if p.PreviousStatus != "" && p.PreviousStatus != p.Status {
		sb.WriteString("\n" + escape("was "+p.PreviousStatus))
	}
	return sb.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}
