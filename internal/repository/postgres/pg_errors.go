package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/soluret/seatbook/internal/repository"
)

// bookingsActiveIdx is the partial unique index backing the one-active-
// booking-per-(user,event) invariant. See migrations/0001_init.sql.
const bookingsActiveIdx = "bookings_active_user_event_idx"

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation
		if pge.Code == "23505" {
			if pge.ConstraintName == bookingsActiveIdx {
				return repository.ErrDuplicateActiveBooking
			}
			return repository.ErrConflict
		}
	}

	return err
}
