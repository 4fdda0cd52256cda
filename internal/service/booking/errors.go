package booking

import "errors"

var (
	ErrUnauthorized      = errors.New("caller token rejected")
	ErrForbidden         = errors.New("caller does not own this booking")
	ErrInvalidQuantity   = errors.New("ticket count must be positive")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventCancelled    = errors.New("event is cancelled")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrDuplicateBooking  = errors.New("user already holds an active booking for this event")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrAlreadyResolved   = errors.New("booking was already resolved by another actor")
	ErrRateLimited       = errors.New("rate limited")
	ErrPersistence       = errors.New("persistence failure")
)
