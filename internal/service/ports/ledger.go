package ports

import "context"

// SeatLedger is the single point of truth for per-event seat counts.
//
// Reserve and Release for the same event are mutually exclusive;
// operations on different events do not block each other.
type SeatLedger interface {
	// Reserve atomically decrements the event's available seats by qty.
	// It fails with repository.ErrInsufficientSeats when fewer than qty
	// seats remain, repository.ErrEventCancelled when the event was
	// cancelled, and repository.ErrNotFound when the event does not exist.
	// Reaching zero flips the event to SOLD_OUT.
	Reserve(ctx context.Context, eventID int64, qty int) error

	// Release increments the event's available seats by qty, capped at the
	// event's total. A release that would exceed the total is applied up to
	// the cap and reported as repository.ErrReleaseOverflow. Releasing
	// against a SOLD_OUT event reopens it; a CANCELLED event keeps its
	// status. Fails with repository.ErrNotFound for unknown events.
	Release(ctx context.Context, eventID int64, qty int) error
}
