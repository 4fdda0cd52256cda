// Package directory serves the event catalog: public cached reads and the
// admin operations that create and cancel events.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/identity"
	"github.com/soluret/seatbook/internal/repository"
	redisrepo "github.com/soluret/seatbook/internal/repository/redis"
	"github.com/soluret/seatbook/internal/service/ports"
)

const (
	eventCacheTTL = 5 * time.Minute
	// Availability changes on every reserve, keep its cache short.
	availabilityCacheTTL = 3 * time.Second
)

type Service struct {
	events   ports.EventRepo
	verifier identity.Verifier
	cache    *redisrepo.Cache
	pubsub   *redisrepo.AvailabilityPubSub
	logger   *slog.Logger
}

// New wires the directory. cache and pubsub may be nil.
func New(
	events ports.EventRepo,
	verifier identity.Verifier,
	cache *redisrepo.Cache,
	pubsub *redisrepo.AvailabilityPubSub,
	logger *slog.Logger,
) *Service {
	return &Service{
		events:   events,
		verifier: verifier,
		cache:    cache,
		pubsub:   pubsub,
		logger:   logger,
	}
}

// CreateEvent stores a new event with a full seat pool. Admin only.
func (s *Service) CreateEvent(ctx context.Context, token string, e *domain.Event) (int64, error) {
	const op = "service.directory.CreateEvent"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}
	if !ident.IsAdmin() {
		return 0, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if strings.TrimSpace(e.Name) == "" || e.TotalSeats <= 0 || e.PriceCents < 0 {
		return 0, fmt.Errorf("%s:%w", op, ErrInvalidEvent)
	}

	e.OrganizerID = ident.UserID
	e.Status = domain.EventOpen
	e.AvailableSeats = e.TotalSeats

	id, err := s.events.Create(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("event created", "event_id", id, "organizer_id", ident.UserID, "seats", e.TotalSeats)

	return id, nil
}

// CancelEvent marks an event CANCELLED. Idempotent; only the organizer who
// created the event may cancel it. Existing bookings are untouched here,
// holders cancel (and get seats back) on their own schedule even though
// the event no longer sells.
func (s *Service) CancelEvent(ctx context.Context, token string, id int64) error {
	const op = "service.directory.CancelEvent"

	ident, err := s.verifier.Verify(token)
	if err != nil {
		return fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}
	if !ident.IsAdmin() {
		return fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	ev, err := s.events.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}
	if ev.OrganizerID != ident.UserID {
		return fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if err := s.events.Cancel(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, id)
	if s.pubsub != nil {
		_ = s.pubsub.PublishChanged(ctx, id)
	}

	s.logger.Info("event cancelled", "event_id", id, "admin_id", ident.UserID)

	return nil
}

// GetEvent returns one event, read through the cache.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.directory.GetEvent"

	load := func(ctx context.Context) (*domain.Event, error) {
		return s.events.Get(ctx, id)
	}

	var (
		ev  *domain.Event
		err error
	)
	if s.cache != nil {
		ev, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyEvent(id), eventCacheTTL, load)
	} else {
		ev, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return ev, nil
}

// ListOpenEvents returns all OPEN events, read through the cache.
func (s *Service) ListOpenEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "service.directory.ListOpenEvents"

	load := func(ctx context.Context) ([]domain.Event, error) {
		return s.events.ListOpen(ctx)
	}

	var (
		out []domain.Event
		err error
	)
	if s.cache != nil {
		out, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyOpenEvents(), availabilityCacheTTL, load)
	} else {
		out, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SeatInfo returns the event's live seat counters through a short cache.
func (s *Service) SeatInfo(ctx context.Context, id int64) (*domain.SeatInfo, error) {
	const op = "service.directory.SeatInfo"

	load := func(ctx context.Context) (*domain.SeatInfo, error) {
		return s.events.SeatInfo(ctx, id)
	}

	var (
		info *domain.SeatInfo
		err  error
	)
	if s.cache != nil {
		info, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyEventAvailability(id), availabilityCacheTTL, load)
	} else {
		info, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return info, nil
}

func (s *Service) invalidate(ctx context.Context, eventID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, eventID)
	}
}
