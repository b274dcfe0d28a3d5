package scheduling

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidRange = errors.New("original booking has no valid time range")

// LastSlotHour is the latest start a drop may snap to.
const LastSlotHour = DayEndHour - SnapHours

// RescheduleInput describes a drop of an existing item onto the calendar.
type RescheduleInput struct {
	OldStart time.Time
	// OldEnd may be zero, in which case DefaultDuration is assumed.
	OldEnd time.Time
	// Date is the target day; only its calendar date in Location is used.
	Date time.Time
	// Hour is the raw fractional drop hour. Nil means a day-cell drop that keeps
	// the original time of day.
	Hour     *float64
	Location *time.Location
}

// Snap rounds a fractional hour to the nearest half hour within the day window.
func Snap(hour float64) float64 {
	return clamp(math.Round(hour/SnapHours)*SnapHours, DayStartHour, LastSlotHour)
}

// Reschedule returns the new [start, end) for a drop. The duration of the
// original range is kept exactly.
func Reschedule(in RescheduleInput) (time.Time, time.Time, error) {
	if in.OldStart.IsZero() {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	duration := DefaultDuration
	if !in.OldEnd.IsZero() {
		duration = in.OldEnd.Sub(in.OldStart)
		if duration <= 0 {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
	}

	y, m, d := in.Date.In(loc).Date()

	var start time.Time
	if in.Hour != nil {
		snapped := Snap(*in.Hour)
		hours := math.Floor(snapped)
		minutes := int(math.Round((snapped - hours) * 60))
		start = time.Date(y, m, d, int(hours), minutes, 0, 0, loc)
	} else {
		orig := in.OldStart.In(loc)
		start = time.Date(y, m, d, orig.Hour(), orig.Minute(), orig.Second(), orig.Nanosecond(), loc)
	}

	return start, start.Add(duration), nil
}
