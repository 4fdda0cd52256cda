// Package booking is the reservation coordinator: it decides whether a
// booking may proceed, drives the booking state machine, and compensates
// the seat ledger when the two-store write sequence fails halfway.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/identity"
	"github.com/soluret/seatbook/internal/monitoring"
	"github.com/soluret/seatbook/internal/repository"
	redisrepo "github.com/soluret/seatbook/internal/repository/redis"
	"github.com/soluret/seatbook/internal/service/ports"
)

type Config struct {
	// MaxTicketsPerBooking bounds one reservation; zero means no bound.
	MaxTicketsPerBooking int
}

type Service struct {
	ledger   ports.SeatLedger
	bookings ports.BookingStore
	verifier identity.Verifier
	cache    *redisrepo.Cache
	pubsub   *redisrepo.AvailabilityPubSub
	limiter  *redisrepo.SlidingWindowLimiter
	logger   *slog.Logger
	cfg      Config
}

// New wires the coordinator. cache, pubsub and limiter may be nil (memory
// storage mode runs without redis).
func New(
	ledger ports.SeatLedger,
	bookings ports.BookingStore,
	verifier identity.Verifier,
	cache *redisrepo.Cache,
	pubsub *redisrepo.AvailabilityPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		ledger:   ledger,
		bookings: bookings,
		verifier: verifier,
		cache:    cache,
		pubsub:   pubsub,
		limiter:  limiter,
		logger:   logger,
		cfg:      cfg,
	}
}

// Create reserves qty seats for the caller and persists a PENDING booking.
//
// The reserve and the insert hit independently owned stores, so there is no
// shared transaction: when the insert fails after a successful reserve, the
// seats are immediately released again. Either both effects happen or
// neither survives.
//
// Returns:
//   - *domain.Booking: the PENDING booking on success.
//   - error: ErrUnauthorized, ErrInvalidQuantity, ErrDuplicateBooking,
//     ErrEventNotFound, ErrEventCancelled, ErrInsufficientSeats,
//     ErrRateLimited, ErrPersistence.
func (s *Service) Create(
	ctx context.Context,
	token string,
	eventID int64,
	qty int,
	rlKey string,
) (*domain.Booking, error) {
	const op = "service.booking.Create"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	if qty <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidQuantity)
	}

	if s.cfg.MaxTicketsPerBooking > 0 && qty > s.cfg.MaxTicketsPerBooking {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidQuantity)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	// Cheap early check; the store's unique constraint still backstops the
	// invariant against racing duplicates.
	active, err := s.bookings.HasActiveBooking(ctx, ident.UserID, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if active {
		return nil, fmt.Errorf("%s:%w", op, ErrDuplicateBooking)
	}

	if err := s.ledger.Reserve(ctx, eventID, qty); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			monitoring.ReserveOutcome("event_not_found")
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		case errors.Is(err, repository.ErrEventCancelled):
			monitoring.ReserveOutcome("event_cancelled")
			return nil, fmt.Errorf("%s:%w", op, ErrEventCancelled)
		case errors.Is(err, repository.ErrInsufficientSeats):
			monitoring.ReserveOutcome("insufficient")
			return nil, fmt.Errorf("%s:%w", op, ErrInsufficientSeats)
		default:
			monitoring.ReserveOutcome("error")
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}
	monitoring.ReserveOutcome("ok")

	now := time.Now().UTC()
	b := &domain.Booking{
		ID:          uuid.New(),
		UserID:      ident.UserID,
		EventID:     eventID,
		TicketCount: qty,
		Status:      domain.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		// Compensate: the seats are reserved but no booking row exists.
		if relErr := s.ledger.Release(ctx, eventID, qty); relErr != nil {
			s.logger.Error("compensating release failed, seats leaked",
				"event_id", eventID, "qty", qty, "error", relErr)
		}

		if errors.Is(err, repository.ErrDuplicateActiveBooking) {
			return nil, fmt.Errorf("%s:%w", op, ErrDuplicateBooking)
		}

		return nil, fmt.Errorf("%s:%w:%w", op, ErrPersistence, err)
	}

	monitoring.BookingTransition(string(domain.BookingPending))
	s.afterSeatChange(ctx, eventID)

	s.logger.Info("booking created",
		"booking_id", b.ID, "event_id", eventID, "user_id", ident.UserID, "qty", qty)

	return b, nil
}

// Confirm transitions the caller's PENDING booking to CONFIRMED. Seats are
// already reserved, so the ledger is untouched.
func (s *Service) Confirm(ctx context.Context, token string, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Confirm"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.UserID != ident.UserID {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	err = s.bookings.UpdateStatus(ctx, bookingID, domain.BookingPending, domain.BookingConfirmed)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%s:%w", op, ErrAlreadyResolved)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	monitoring.BookingTransition(string(domain.BookingConfirmed))
	s.logger.Info("booking confirmed", "booking_id", bookingID, "user_id", ident.UserID)

	return s.bookings.FindByID(ctx, bookingID)
}

// Cancel terminalizes a PENDING or CONFIRMED booking and returns its seats.
// Only the owner or an admin may cancel. Cancelling a booking that another
// actor already terminalized is an idempotent no-op: the seat release
// belongs to whoever won the status transition.
func (s *Service) Cancel(ctx context.Context, token string, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	won := false
	for _, from := range domain.ActiveStatuses {
		err = s.bookings.UpdateStatus(ctx, bookingID, from, domain.BookingCancelled)
		if err == nil {
			won = true
			break
		}
		if !errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	if !won {
		// Already CANCELLED or EXPIRED; seats were released by the winner.
		return s.bookings.FindByID(ctx, bookingID)
	}

	monitoring.BookingTransition(string(domain.BookingCancelled))

	if err := s.ledger.Release(ctx, b.EventID, b.TicketCount); err != nil {
		// The booking is cancelled either way; a failed release leaks
		// seats, which operators must re-drive from this log line.
		s.logger.Error("seat release after cancel failed",
			"booking_id", bookingID, "event_id", b.EventID, "qty", b.TicketCount, "error", err)
		return nil, fmt.Errorf("%s:%w:%w", op, ErrPersistence, err)
	}

	monitoring.SeatsReleased(b.TicketCount)
	s.afterSeatChange(ctx, b.EventID)

	s.logger.Info("booking cancelled",
		"booking_id", bookingID, "event_id", b.EventID, "by_admin", ident.IsAdmin())

	return s.bookings.FindByID(ctx, bookingID)
}

// Get returns a booking visible to the caller (owner or admin).
func (s *Service) Get(ctx context.Context, token string, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	return b, nil
}

// List returns the caller's bookings.
func (s *Service) List(ctx context.Context, token string) ([]domain.Booking, error) {
	const op = "service.booking.List"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	out, err := s.bookings.FindByUser(ctx, ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) afterSeatChange(ctx context.Context, eventID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishChanged(ctx, eventID)
	}
}
