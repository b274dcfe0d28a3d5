package service

import (
	"errors"
	"fmt"

	"sportclub/internal/database"
)

var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidTimeRange = fmt.Errorf("%w: end time must be after start time", ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: status must be confirmed or cancelled", ErrValidation)
)

var (
	ErrFacilityNotFound = fmt.Errorf("facility %w", database.ErrNotFound)
	ErrBookingNotFound  = fmt.Errorf("booking %w", database.ErrNotFound)
	ErrClubNotFound     = fmt.Errorf("club %w", database.ErrNotFound)
	ErrTeamNotFound     = fmt.Errorf("team %w", database.ErrNotFound)
	ErrMemberNotFound   = fmt.Errorf("member %w", database.ErrNotFound)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFoundAs swaps a storage not-found for the domain sentinel and wraps anything else.
func notFoundAs(err, sentinel error, op string) error {
	if errors.Is(err, database.ErrNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
