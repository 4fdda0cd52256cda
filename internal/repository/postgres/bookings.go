package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

const bookingColumns = `id, user_id, event_id, ticket_count, status, created_at, updated_at`

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a booking row. The bookings_active_user_event_idx partial
// unique index rejects a second active booking for the same (user, event).
//
// Returns:
//   - error: repository.ErrDuplicateActiveBooking on an active duplicate.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO bookings (id, user_id, event_id, ticket_count, status, created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.UserID, b.EventID, b.TicketCount, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (r *BookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.FindByID"

	db := r.handle()

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.UserID, &b.EventID, &b.TicketCount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

func (r *BookingRepo) FindByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.FindByUser"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

func (r *BookingRepo) FindByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.FindByEvent"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+` FROM bookings WHERE event_id = $1 ORDER BY created_at DESC`,
		eventID,
	)
}

func (r *BookingRepo) FindByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.FindByStatus"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY created_at DESC`,
		status,
	)
}

// FindExpiredPending returns PENDING bookings created before cutoff, served
// by the (status, created_at) index.
func (r *BookingRepo) FindExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.FindExpiredPending"

	return r.list(ctx, op,
		`SELECT `+bookingColumns+` FROM bookings
      	 WHERE status = 'PENDING' AND created_at < $1
      	 ORDER BY created_at`,
		cutoff,
	)
}

// UpdateStatus is the optimistic transition primitive: one conditional
// UPDATE, no read-then-write window.
//
// Returns:
//   - error: repository.ErrStaleState when the row exists but its status is
//     not expected; repository.ErrNotFound when the booking does not exist.
func (r *BookingRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.BookingStatus,
) error {
	const op = "postgres.BookingRepo.UpdateStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET status = $3, updated_at = now()
      	 WHERE id = $1 AND status = $2`,
		id, expected, next,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrStaleState)
}

func (r *BookingRepo) HasActiveBooking(ctx context.Context, userID, eventID int64) (bool, error) {
	const op = "postgres.BookingRepo.HasActiveBooking"

	db := r.handle()

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (
        	SELECT 1 FROM bookings
        	WHERE user_id = $1 AND event_id = $2 AND status IN ('PENDING', 'CONFIRMED')
     	 )`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return exists, nil
}

func (r *BookingRepo) list(ctx context.Context, op, sql string, args ...any) ([]domain.Booking, error) {
	db := r.handle()

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.EventID, &b.TicketCount,
			&b.Status, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
