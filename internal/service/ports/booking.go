package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/soluret/seatbook/internal/domain"
)

// BookingStore is the durable booking ledger. Rows are terminalized, never
// deleted. Status changes go exclusively through UpdateStatus so that two
// actors can never double-process the same booking.
type BookingStore interface {
	// Create persists a new booking. Fails with
	// repository.ErrDuplicateActiveBooking when the user already holds a
	// PENDING or CONFIRMED booking for the same event.
	Create(ctx context.Context, b *domain.Booking) error

	FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	FindByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error)
	FindByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error)

	// FindExpiredPending returns PENDING bookings created before cutoff.
	FindExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error)

	// UpdateStatus transitions a booking from expected to next as a single
	// atomic conditional write. Fails with repository.ErrStaleState when the
	// current status is not expected, repository.ErrNotFound when the
	// booking does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.BookingStatus) error

	// HasActiveBooking reports whether the user holds a PENDING or
	// CONFIRMED booking for the event.
	HasActiveBooking(ctx context.Context, userID, eventID int64) (bool, error)
}
