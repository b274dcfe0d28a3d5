package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	TypeTraining    = "training"
	TypeMatch       = "match"
	TypeEvent       = "event"
	TypeMaintenance = "maintenance"
)

const (
	FacilityAvailable   = "available"
	FacilityUnavailable = "unavailable"
)

const (
	// DefaultMaxConcurrentBookings applies when a facility is saved without a capacity limit.
	DefaultMaxConcurrentBookings = 1

	// DefaultTimezone is used for clubs without an explicit IANA zone.
	DefaultTimezone = "UTC"

	// FacilityCacheTTL is the facility cache entry lifetime in seconds.
	FacilityCacheTTL = 10 * 60

	// WorkerQueueSize bounds the in-memory sync queue.
	WorkerQueueSize = 128
)

// IsValidStatus reports whether s is one of the booking statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// IsValidType reports whether t is one of the booking types.
func IsValidType(t string) bool {
	switch t {
	case TypeTraining, TypeMatch, TypeEvent, TypeMaintenance:
		return true
	}
	return false
}
