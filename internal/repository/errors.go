package repository

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInsufficientSeats      = errors.New("insufficient seats")
	ErrEventCancelled         = errors.New("event cancelled")
	ErrDuplicateActiveBooking = errors.New("active booking already exists")
	ErrStaleState             = errors.New("stale booking state")
	ErrReleaseOverflow        = errors.New("release exceeds total seats")
)
