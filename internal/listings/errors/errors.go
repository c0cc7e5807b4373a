package errors

import "errors"

var (
	ErrNotFound  = errors.New("listing not found")
	ErrInvalidID = errors.New("invalid listing ID format")

	ErrInactive          = errors.New("listing is deactivated")
	ErrHasActiveBookings = errors.New("listing has active bookings")
)
