package models

import "time"

// AvailabilityQuery asks whether a candidate range fits on a facility.
// ExcludeBookingID removes the booking being edited from the count.
type AvailabilityQuery struct {
	FacilityID       int64     `json:"facilityId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	ExcludeBookingID *int64    `json:"excludeBookingId,omitempty"`
}

type AvailabilityResult struct {
	Available       bool `json:"available"`
	CurrentBookings int  `json:"currentBookings"`
	MaxConcurrent   int  `json:"maxConcurrent"`
}

// BulkAvailabilityResult pairs a bulk query with its outcome.
type BulkAvailabilityResult struct {
	Query  AvailabilityQuery  `json:"query"`
	Result AvailabilityResult `json:"result"`
}
