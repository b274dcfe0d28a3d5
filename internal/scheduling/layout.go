// Package scheduling computes calendar grid placement and drag-reschedule
// ranges. It does no I/O.
package scheduling

import (
	"math"
	"sort"
	"time"
)

const (
	DayStartHour     = 6.0
	DayEndHour       = 24.0
	PixelsPerHour    = 50.0
	MinHeightPx      = 25.0
	MinDurationHours = 0.5
	SnapHours        = 0.5
	DefaultDuration  = 2 * time.Hour
)

const (
	KindBooking  = "booking"
	KindBirthday = "birthday"
)

// Item is anything that can sit on the day grid.
type Item struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	FacilityID *int64    `json:"facilityId,omitempty"`
	Type       string    `json:"type,omitempty"`
	Status     string    `json:"status,omitempty"`
	AllDay     bool      `json:"allDay,omitempty"`
}

// Placement is an item's position on the grid. Top and Height are pixels,
// Left and Width are percentages of the column.
type Placement struct {
	Item      Item    `json:"item"`
	StartHour float64 `json:"startHour"`
	EndHour   float64 `json:"endHour"`
	Top       float64 `json:"top"`
	Height    float64 `json:"height"`
	Column    int     `json:"column"`
	Columns   int     `json:"columns"`
	Left      float64 `json:"left"`
	Width     float64 `json:"width"`
}

// FractionalHour returns t as hours since midnight of day in loc. Instants before
// that day give 0; instants on or after the next midnight give 24.
func FractionalHour(t, day time.Time, loc *time.Location) float64 {
	if loc == nil {
		loc = time.UTC
	}
	dayStart := startOfDay(day, loc)
	local := t.In(loc)
	if local.Before(dayStart) {
		return 0
	}
	if !local.Before(dayStart.AddDate(0, 0, 1)) {
		return DayEndHour
	}
	return float64(local.Hour()) + float64(local.Minute())/60
}

// Position places a single item, ignoring other items.
func Position(item Item, day time.Time, loc *time.Location) Placement {
	start := clamp(FractionalHour(item.Start, day, loc), DayStartHour, DayEndHour)
	end := FractionalHour(item.End, day, loc)
	end = math.Min(math.Max(end, start+MinDurationHours), DayEndHour)

	return Placement{
		Item:      item,
		StartHour: start,
		EndHour:   end,
		Top:       (start - DayStartHour) * PixelsPerHour,
		Height:    math.Max((end-start)*PixelsPerHour, MinHeightPx),
		Columns:   1,
		Width:     100,
	}
}

type group struct {
	top, bottom float64
	members     []int
}

// Layout positions the timed items of a day and splits overlapping ones into
// side-by-side columns. All-day items are skipped.
//
// Items are taken in order of Top and each joins the first group whose current
// extent it overlaps, widening that extent. A chain A-B-C therefore shares one
// group even when A and C do not touch.
func Layout(items []Item, day time.Time, loc *time.Location) []Placement {
	placements := make([]Placement, 0, len(items))
	for _, it := range items {
		if it.AllDay {
			continue
		}
		placements = append(placements, Position(it, day, loc))
	}

	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].Top < placements[j].Top
	})

	var groups []*group
	for i := range placements {
		top := placements[i].Top
		bottom := top + placements[i].Height

		var target *group
		for _, g := range groups {
			if !(bottom <= g.top || top >= g.bottom) {
				target = g
				break
			}
		}
		if target == nil {
			target = &group{top: top, bottom: bottom}
			groups = append(groups, target)
		}
		target.members = append(target.members, i)
		target.top = math.Min(target.top, top)
		target.bottom = math.Max(target.bottom, bottom)
	}

	for _, g := range groups {
		n := len(g.members)
		width := 100 / float64(n)
		for col, idx := range g.members {
			placements[idx].Column = col
			placements[idx].Columns = n
			placements[idx].Width = width
			placements[idx].Left = float64(col) * width
		}
	}
	return placements
}

// SplitAllDay separates all-day items from timed ones, preserving order.
func SplitAllDay(items []Item) (timed, allDay []Item) {
	for _, it := range items {
		if it.AllDay {
			allDay = append(allDay, it)
		} else {
			timed = append(timed, it)
		}
	}
	return timed, allDay
}

func startOfDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
