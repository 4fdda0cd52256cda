package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

// LedgerRepo owns the seat counters on the events table. Both operations
// are single conditional statements, so concurrent callers for the same
// event serialize on the row lock and can never overcommit; different
// events never contend.
type LedgerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve decrements available_seats by qty if enough seats remain and the
// event is OPEN, flipping the event to SOLD_OUT at zero.
func (r *LedgerRepo) Reserve(ctx context.Context, eventID int64, qty int) error {
	const op = "postgres.LedgerRepo.Reserve"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
     	 SET available_seats = available_seats - $2,
         	 status = CASE WHEN available_seats - $2 = 0 THEN 'SOLD_OUT' ELSE status END,
         	 updated_at = now()
      	 WHERE id = $1
        	AND status = 'OPEN'
        	AND available_seats >= $2`,
		eventID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// The guard rejected the update; find out why.
	var status domain.EventStatus
	err = db.QueryRow(ctx, `SELECT status FROM events WHERE id = $1`, eventID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if status == domain.EventCancelled {
		return fmt.Errorf("%s:%w", op, repository.ErrEventCancelled)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrInsufficientSeats)
}

// Release increments available_seats by qty, capped at total_seats, and
// reopens a SOLD_OUT event. A CANCELLED event takes the seats back without
// a status change. Exceeding the cap is reported, not applied.
func (r *LedgerRepo) Release(ctx context.Context, eventID int64, qty int) error {
	const op = "postgres.LedgerRepo.Release"

	db := r.handle()

	var overflow bool
	err := db.QueryRow(ctx,
		`WITH prev AS (
        	SELECT id, available_seats, total_seats, status
        	FROM events
       	 	WHERE id = $1
         	FOR UPDATE
     	 )
     	 UPDATE events e
     	 SET available_seats = LEAST(prev.available_seats + $2, prev.total_seats),
         	 status = CASE WHEN prev.status = 'SOLD_OUT' AND prev.available_seats + $2 > 0
                  	   THEN 'OPEN' ELSE prev.status END,
         	 updated_at = now()
     	 FROM prev
      	 WHERE e.id = prev.id
      	 RETURNING prev.available_seats + $2 > prev.total_seats`,
		eventID, qty,
	).Scan(&overflow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if overflow {
		return fmt.Errorf("%s:%w", op, repository.ErrReleaseOverflow)
	}

	return nil
}
