package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sportclub/internal/models"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingUpdated       = "booking_updated"
	EventBookingRescheduled   = "booking_rescheduled"
	EventBookingStatusChanged = "booking_status_changed"
	EventBookingDeleted       = "booking_deleted"
)

// BookingEvents lists every booking event type, for subscribers that want all of them.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingRescheduled,
	EventBookingStatusChanged,
	EventBookingDeleted,
}

// BookingEventPayload is the booking snapshot carried by booking events.
type BookingEventPayload struct {
	BookingID      int64           `json:"booking_id"`
	ClubID         int64           `json:"club_id"`
	FacilityID     *int64          `json:"facility_id,omitempty"`
	Title          string          `json:"title"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Booking        *models.Booking `json:"booking,omitempty"`
}

// NewBookingPayload snapshots b. The full booking is omitted for deletions.
func NewBookingPayload(b *models.Booking, includeBooking bool) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:  b.ID,
		ClubID:     b.ClubID,
		FacilityID: b.FacilityID,
		Title:      b.Title,
		Type:       b.Type,
		Status:     b.Status,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
	if includeBooking {
		cp := *b
		p.Booking = &cp
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers handler for each of the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs the subscribers synchronously, in registration order. Every handler
// runs even if an earlier one fails; their errors are joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// DecodeBooking unmarshals a booking event payload.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(event.Payload, &p)
	return p, err
}
