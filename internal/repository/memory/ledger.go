package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

// Reserve checks and decrements the counter under the event's own lock, so
// concurrent reserves for one event serialize while other events proceed.
func (l *Ledger) Reserve(ctx context.Context, eventID int64, qty int) error {
	const op = "memory.Ledger.Reserve"

	rec, ok := l.s.event(eventID)
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.ev.Status == domain.EventCancelled {
		return fmt.Errorf("%s:%w", op, repository.ErrEventCancelled)
	}

	if rec.ev.AvailableSeats < qty {
		return fmt.Errorf("%s:%w", op, repository.ErrInsufficientSeats)
	}

	rec.ev.AvailableSeats -= qty
	if rec.ev.AvailableSeats == 0 {
		rec.ev.Status = domain.EventSoldOut
	}
	rec.ev.UpdatedAt = time.Now().UTC()

	return nil
}

// Release gives seats back, capped at the event total. A CANCELLED event
// keeps its status; SOLD_OUT reopens.
func (l *Ledger) Release(ctx context.Context, eventID int64, qty int) error {
	const op = "memory.Ledger.Release"

	rec, ok := l.s.event(eventID)
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	overflow := rec.ev.AvailableSeats+qty > rec.ev.TotalSeats

	rec.ev.AvailableSeats += qty
	if rec.ev.AvailableSeats > rec.ev.TotalSeats {
		rec.ev.AvailableSeats = rec.ev.TotalSeats
	}
	if rec.ev.Status == domain.EventSoldOut && rec.ev.AvailableSeats > 0 {
		rec.ev.Status = domain.EventOpen
	}
	rec.ev.UpdatedAt = time.Now().UTC()

	if overflow {
		return fmt.Errorf("%s:%w", op, repository.ErrReleaseOverflow)
	}

	return nil
}
