package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

func (r *Events) Create(ctx context.Context, e *domain.Event) (int64, error) {
	r.s.evMu.Lock()
	defer r.s.evMu.Unlock()

	r.s.nextEventID++

	cp := *e
	cp.ID = r.s.nextEventID
	cp.AvailableSeats = cp.TotalSeats
	cp.Status = domain.EventOpen
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	r.s.events[cp.ID] = &eventRec{ev: cp}

	return cp.ID, nil
}

func (r *Events) Get(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "memory.Events.Get"

	rec, ok := r.s.event(id)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	cp := rec.ev
	return &cp, nil
}

func (r *Events) ListOpen(ctx context.Context) ([]domain.Event, error) {
	r.s.evMu.RLock()
	defer r.s.evMu.RUnlock()

	var out []domain.Event
	for _, rec := range r.s.events {
		rec.mu.Lock()
		if rec.ev.Status == domain.EventOpen {
			out = append(out, rec.ev)
		}
		rec.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })

	return out, nil
}

func (r *Events) SeatInfo(ctx context.Context, id int64) (*domain.SeatInfo, error) {
	const op = "memory.Events.SeatInfo"

	rec, ok := r.s.event(id)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return &domain.SeatInfo{
		TotalSeats:     rec.ev.TotalSeats,
		AvailableSeats: rec.ev.AvailableSeats,
		Status:         rec.ev.Status,
	}, nil
}

func (r *Events) Cancel(ctx context.Context, id int64) error {
	const op = "memory.Events.Cancel"

	rec, ok := r.s.event(id)
	if !ok {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.ev.Status = domain.EventCancelled
	rec.ev.UpdatedAt = time.Now().UTC()

	return nil
}
