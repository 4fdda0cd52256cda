// Package sweeper expires stale PENDING bookings in the background so that
// abandoned reservations return their seats to the pool.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/monitoring"
	"github.com/soluret/seatbook/internal/repository"
	"github.com/soluret/seatbook/internal/service/ports"
)

type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// TTL is how long a PENDING booking may live before it expires.
	TTL time.Duration
}

// pendingRelease is a seat release that expired a booking but failed to
// return its seats; it is retried on subsequent sweeps until it lands.
type pendingRelease struct {
	BookingID uuid.UUID
	EventID   int64
	Qty       int
}

type Sweeper struct {
	ledger   ports.SeatLedger
	bookings ports.BookingStore
	logger   *slog.Logger
	cfg      Config

	mu      sync.Mutex
	retries []pendingRelease
}

func New(ledger ports.SeatLedger, bookings ports.BookingStore, logger *slog.Logger, cfg Config) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		bookings: bookings,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.cfg.Interval, "ttl", s.cfg.TTL)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one pass: retry earlier failed releases, then expire every
// PENDING booking older than the TTL. A booking's seats are released only
// when this sweeper wins the PENDING->EXPIRED transition; losing to a
// concurrent cancel means the canceller owns the release.
func (s *Sweeper) Sweep(ctx context.Context) error {
	const op = "service.sweeper.Sweep"

	s.drainRetries(ctx)

	cutoff := time.Now().UTC().Add(-s.cfg.TTL)

	stale, err := s.bookings.FindExpiredPending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	expired := 0
	for _, b := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.expire(ctx, b) {
			expired++
		}
	}

	monitoring.SweepCompleted(expired)

	if expired > 0 {
		s.logger.Info("sweep expired bookings", "count", expired, "scanned", len(stale))
	}

	return nil
}

func (s *Sweeper) expire(ctx context.Context, b domain.Booking) bool {
	err := s.bookings.UpdateStatus(ctx, b.ID, domain.BookingPending, domain.BookingExpired)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrNotFound) {
			// Lost the race to a cancel or confirm; nothing to release.
			return false
		}
		s.logger.Error("expire transition failed", "booking_id", b.ID, "error", err)
		return false
	}

	monitoring.BookingTransition(string(domain.BookingExpired))

	if err := s.ledger.Release(ctx, b.EventID, b.TicketCount); err != nil {
		if errors.Is(err, repository.ErrReleaseOverflow) {
			// Seats were clamped at the cap; nothing left to retry.
			s.logger.Warn("release clamped at event capacity",
				"booking_id", b.ID, "event_id", b.EventID)
			return true
		}
		s.logger.Error("seat release after expiry failed, queued for retry",
			"booking_id", b.ID, "event_id", b.EventID, "qty", b.TicketCount, "error", err)
		s.enqueueRetry(pendingRelease{BookingID: b.ID, EventID: b.EventID, Qty: b.TicketCount})
		return true
	}

	monitoring.SeatsReleased(b.TicketCount)

	s.logger.Info("booking expired",
		"booking_id", b.ID, "event_id", b.EventID, "qty", b.TicketCount)

	return true
}

func (s *Sweeper) enqueueRetry(r pendingRelease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, r)
}

func (s *Sweeper) drainRetries(ctx context.Context) {
	s.mu.Lock()
	pending := s.retries
	s.retries = nil
	s.mu.Unlock()

	for _, r := range pending {
		err := s.ledger.Release(ctx, r.EventID, r.Qty)
		if err == nil || errors.Is(err, repository.ErrReleaseOverflow) {
			monitoring.SeatsReleased(r.Qty)
			s.logger.Info("retried seat release succeeded",
				"booking_id", r.BookingID, "event_id", r.EventID, "qty", r.Qty)
			continue
		}
		s.enqueueRetry(r)
		s.logger.Error("retried seat release failed",
			"booking_id", r.BookingID, "event_id", r.EventID, "error", err)
	}
}
