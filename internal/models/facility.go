package models

import "time"

type Facility struct {
	ID                    int64     `yaml:"id" json:"id"`
	ClubID                int64     `yaml:"club_id" json:"clubId"`
	Name                  string    `yaml:"name" json:"name"`
	Type                  string    `yaml:"type" json:"type"`
	Capacity              int       `yaml:"capacity" json:"capacity"`
	MaxConcurrentBookings int       `yaml:"max_concurrent_bookings" json:"maxConcurrentBookings"`
	Status                string    `yaml:"status" json:"status"`
	CreatedAt             time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt             time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Bookable reports whether the facility accepts bookings at all.
func (f *Facility) Bookable() bool {
	return f.Status != FacilityUnavailable
}
