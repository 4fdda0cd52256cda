package ports

import (
	"context"

	"github.com/soluret/seatbook/internal/domain"
)

// EventRepo is the event directory: metadata plus the seat counters the
// ledger mutates.
type EventRepo interface {
	// Create stores a new event with available seats equal to total seats
	// and returns its id.
	Create(ctx context.Context, e *domain.Event) (int64, error)

	Get(ctx context.Context, id int64) (*domain.Event, error)
	ListOpen(ctx context.Context) ([]domain.Event, error)

	// SeatInfo returns the event's seat counters and status.
	SeatInfo(ctx context.Context, id int64) (*domain.SeatInfo, error)

	// Cancel marks the event CANCELLED. Cancelled events reject reserves
	// and are never auto-reopened by releases.
	Cancel(ctx context.Context, id int64) error
}
