package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

const eventColumns = `id, name, description, venue, starts_at, total_seats,
	available_seats, price_cents, status, organizer_id, created_at, updated_at`

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts an event with every seat available.
func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (int64, error) {
	const op = "postgres.EventRepo.Create"

	db := r.handle()

	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO events
       	 	(name, description, venue, starts_at, total_seats, available_seats,
        	 price_cents, status, organizer_id)
       	 VALUES ($1, $2, $3, $4, $5, $5, $6, 'OPEN', $7)
       	 RETURNING id`,
		e.Name, e.Description, e.Venue, e.StartsAt, e.TotalSeats,
		e.PriceCents, e.OrganizerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

func (r *EventRepo) Get(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	db := r.handle()

	var e domain.Event
	err := db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	).Scan(
		&e.ID, &e.Name, &e.Description, &e.Venue, &e.StartsAt, &e.TotalSeats,
		&e.AvailableSeats, &e.PriceCents, &e.Status, &e.OrganizerID,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &e, nil
}

func (r *EventRepo) ListOpen(ctx context.Context) ([]domain.Event, error) {
	const op = "postgres.EventRepo.ListOpen"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+eventColumns+` FROM events
      	 WHERE status = 'OPEN'
      	 ORDER BY starts_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.Venue, &e.StartsAt, &e.TotalSeats,
			&e.AvailableSeats, &e.PriceCents, &e.Status, &e.OrganizerID,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *EventRepo) SeatInfo(ctx context.Context, id int64) (*domain.SeatInfo, error) {
	const op = "postgres.EventRepo.SeatInfo"

	db := r.handle()

	var si domain.SeatInfo
	err := db.QueryRow(ctx,
		`SELECT total_seats, available_seats, status FROM events WHERE id = $1`,
		id,
	).Scan(&si.TotalSeats, &si.AvailableSeats, &si.Status)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &si, nil
}

// Cancel terminalizes the event. Idempotent: cancelling a cancelled event
// is a no-op success.
func (r *EventRepo) Cancel(ctx context.Context, id int64) error {
	const op = "postgres.EventRepo.Cancel"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events SET status = 'CANCELLED', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
