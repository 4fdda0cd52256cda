package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

func (r *Bookings) Create(ctx context.Context, b *domain.Booking) error {
	const op = "memory.Bookings.Create"

	r.s.bkMu.Lock()
	defer r.s.bkMu.Unlock()

	for _, other := range r.s.bookings {
		if other.UserID == b.UserID && other.EventID == b.EventID &&
			(other.Status == domain.BookingPending || other.Status == domain.BookingConfirmed) {
			return fmt.Errorf("%s:%w", op, repository.ErrDuplicateActiveBooking)
		}
	}

	cp := *b
	r.s.bookings[b.ID] = &cp

	return nil
}

func (r *Bookings) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "memory.Bookings.FindByID"

	r.s.bkMu.Lock()
	defer r.s.bkMu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	cp := *b
	return &cp, nil
}

func (r *Bookings) FindByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return r.filter(newestFirst, func(b *domain.Booking) bool { return b.UserID == userID }), nil
}

func (r *Bookings) FindByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error) {
	return r.filter(newestFirst, func(b *domain.Booking) bool { return b.EventID == eventID }), nil
}

func (r *Bookings) FindByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	return r.filter(newestFirst, func(b *domain.Booking) bool { return b.Status == status }), nil
}

// FindExpiredPending scans oldest first so the sweeper reclaims the most
// overdue bookings ahead of the rest.
func (r *Bookings) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	return r.filter(oldestFirst, func(b *domain.Booking) bool {
		return b.Status == domain.BookingPending && b.CreatedAt.Before(cutoff)
	}), nil
}

// UpdateStatus performs the conditional transition under the store lock:
// check and write are one critical section, so racing actors get exactly
// one winner.
func (r *Bookings) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.BookingStatus,
) error {
	const op = "memory.Bookings.UpdateStatus"

	r.s.bkMu.Lock()
	defer r.s.bkMu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	if b.Status != expected {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleState)
	}

	b.Status = next
	b.UpdatedAt = time.Now().UTC()

	return nil
}

func (r *Bookings) HasActiveBooking(ctx context.Context, userID, eventID int64) (bool, error) {
	r.s.bkMu.Lock()
	defer r.s.bkMu.Unlock()

	for _, b := range r.s.bookings {
		if b.UserID == userID && b.EventID == eventID &&
			(b.Status == domain.BookingPending || b.Status == domain.BookingConfirmed) {
			return true, nil
		}
	}

	return false, nil
}

type order int

const (
	oldestFirst order = iota
	newestFirst
)

func (r *Bookings) filter(ord order, keep func(*domain.Booking) bool) []domain.Booking {
	r.s.bkMu.Lock()
	defer r.s.bkMu.Unlock()

	var out []domain.Booking
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if ord == newestFirst {
			return out[j].CreatedAt.Before(out[i].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}
