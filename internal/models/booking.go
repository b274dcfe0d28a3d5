package models

import "time"

// Booking is a scheduled use of a facility, or a club calendar event when FacilityID is nil.
type Booking struct {
	ID            int64     `json:"id"`
	ClubID        int64     `json:"clubId"`
	FacilityID    *int64    `json:"facilityId,omitempty"`
	TeamID        *int64    `json:"teamId,omitempty"`
	MemberID      *int64    `json:"memberId,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Type          string    `json:"type"`   // training, match, event, maintenance
	Status        string    `json:"status"` // pending, confirmed, cancelled
	Participants  int       `json:"participants,omitempty"`
	Cost          float64   `json:"cost,omitempty"`
	ContactPerson string    `json:"contactPerson,omitempty"`
	ContactEmail  string    `json:"contactEmail,omitempty"`
	ContactPhone  string    `json:"contactPhone,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BookingPatch carries the fields of a partial update. Nil means "leave unchanged".
// The Clear flags detach an optional reference and win over a new id.
type BookingPatch struct {
	FacilityID    *int64     `json:"facilityId,omitempty"`
	ClearFacility bool       `json:"clearFacility,omitempty"`
	TeamID        *int64     `json:"teamId,omitempty"`
	ClearTeam     bool       `json:"clearTeam,omitempty"`
	MemberID      *int64     `json:"memberId,omitempty"`
	ClearMember   bool       `json:"clearMember,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Type          *string    `json:"type,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Participants  *int       `json:"participants,omitempty"`
	Cost          *float64   `json:"cost,omitempty"`
	ContactPerson *string    `json:"contactPerson,omitempty"`
	ContactEmail  *string    `json:"contactEmail,omitempty"`
	ContactPhone  *string    `json:"contactPhone,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// Apply copies the set fields of p onto b.
func (p BookingPatch) Apply(b *Booking) {
	if p.ClearFacility {
		b.FacilityID = nil
	} else if p.FacilityID != nil {
		id := *p.FacilityID
		b.FacilityID = &id
	}
	if p.ClearTeam {
		b.TeamID = nil
	} else if p.TeamID != nil {
		id := *p.TeamID
		b.TeamID = &id
	}
	if p.ClearMember {
		b.MemberID = nil
	} else if p.MemberID != nil {
		id := *p.MemberID
		b.MemberID = &id
	}
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.StartTime != nil {
		b.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		b.EndTime = *p.EndTime
	}
	if p.Type != nil {
		b.Type = *p.Type
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Participants != nil {
		b.Participants = *p.Participants
	}
	if p.Cost != nil {
		b.Cost = *p.Cost
	}
	if p.ContactPerson != nil {
		b.ContactPerson = *p.ContactPerson
	}
	if p.ContactEmail != nil {
		b.ContactEmail = *p.ContactEmail
	}
	if p.ContactPhone != nil {
		b.ContactPhone = *p.ContactPhone
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
}

// TimesChanged reports whether the patch touches the booking's time range.
func (p BookingPatch) TimesChanged() bool {
	return p.StartTime != nil || p.EndTime != nil
}

// Active reports whether the booking occupies its facility. Cancelled bookings never do.
func (b *Booking) Active() bool {
	return b.Status != StatusCancelled
}

// Overlaps reports whether the booking's [StartTime, EndTime) intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return RangesOverlap(b.StartTime, b.EndTime, start, end)
}

// RangesOverlap is the half-open interval test: a range ending at T does not touch one starting at T.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// BookingFilter scopes a booking listing. ClubID is required; the range selects
// bookings overlapping [From, To).
type BookingFilter struct {
	ClubID     int64
	FacilityID *int64
	From       *time.Time
	To         *time.Time
}
