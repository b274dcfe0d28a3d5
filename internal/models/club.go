package models

import (
	"sync"
	"time"
	_ "time/tzdata" // clubs may name any IANA zone
)

type Club struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Timezone  string    `yaml:"timezone" json:"timezone"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}

// zones maps an IANA name to its resolved *time.Location. Unknown names map to UTC.
var zones sync.Map

// Location resolves the club timezone, falling back to UTC for unknown zones.
// Each zone name is loaded once per process.
func (c *Club) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	if loc, ok := zones.Load(c.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	actual, _ := zones.LoadOrStore(c.Timezone, loc)
	return actual.(*time.Location)
}

type Team struct {
	ID        int64     `json:"id"`
	ClubID    int64     `json:"clubId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	ID        int64      `json:"id"`
	ClubID    int64      `json:"clubId"`
	TeamID    *int64     `json:"teamId,omitempty"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	BirthDate *time.Time `json:"birthDate,omitempty"` // civil date, time part ignored
	CreatedAt time.Time  `json:"createdAt"`
}

// FullName joins first and last name.
func (m *Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}
