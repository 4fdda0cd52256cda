package directory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/identity"
	"github.com/soluret/seatbook/internal/repository/memory"
)

type staticVerifier map[string]domain.Identity

func (v staticVerifier) Verify(token string) (*domain.Identity, error) {
	ident, ok := v[token]
	if !ok {
		return nil, identity.ErrUnauthorized
	}
	return &ident, nil
}

var testVerifier = staticVerifier{
	"tok-user":        {UserID: 1, Role: domain.RoleUser},
	"tok-admin":       {UserID: 99, Role: domain.RoleAdmin},
	"tok-other-admin": {UserID: 100, Role: domain.RoleAdmin},
}

func newService(store *memory.Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store.Events(), testVerifier, nil, nil, logger)
}

func validEvent() *domain.Event {
	return &domain.Event{
		Name:       "gig",
		Venue:      "arena",
		StartsAt:   time.Now().Add(24 * time.Hour),
		TotalSeats: 100,
		PriceCents: 2500,
	}
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store)

	id, err := svc.CreateEvent(ctx, "tok-admin", validEvent())
	require.NoError(t, err)

	got, err := svc.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "gig", got.Name)
	assert.Equal(t, 100, got.AvailableSeats)
	assert.Equal(t, domain.EventOpen, got.Status)
	assert.Equal(t, int64(99), got.OrganizerID)
}

func TestCreateEventAuth(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.NewStore())

	_, err := svc.CreateEvent(ctx, "bad-token", validEvent())
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.CreateEvent(ctx, "tok-user", validEvent())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateEventValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.NewStore())

	e := validEvent()
	e.Name = "  "
	_, err := svc.CreateEvent(ctx, "tok-admin", e)
	require.ErrorIs(t, err, ErrInvalidEvent)

	e = validEvent()
	e.TotalSeats = 0
	_, err = svc.CreateEvent(ctx, "tok-admin", e)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestCancelEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store)

	id, err := svc.CreateEvent(ctx, "tok-admin", validEvent())
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelEvent(ctx, "tok-user", id), ErrForbidden)
	// Only the organizer who created the event may cancel it.
	require.ErrorIs(t, svc.CancelEvent(ctx, "tok-other-admin", id), ErrForbidden)
	require.NoError(t, svc.CancelEvent(ctx, "tok-admin", id))
	// Idempotent.
	require.NoError(t, svc.CancelEvent(ctx, "tok-admin", id))

	got, err := svc.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, got.Status)

	require.ErrorIs(t, svc.CancelEvent(ctx, "tok-admin", 404), ErrEventNotFound)
}

func TestGetEventNotFound(t *testing.T) {
	svc := newService(memory.NewStore())

	_, err := svc.GetEvent(context.Background(), 404)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestListOpenEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store)

	first, err := svc.CreateEvent(ctx, "tok-admin", validEvent())
	require.NoError(t, err)
	_, err = svc.CreateEvent(ctx, "tok-admin", validEvent())
	require.NoError(t, err)

	require.NoError(t, svc.CancelEvent(ctx, "tok-admin", first))

	out, err := svc.ListOpenEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSeatInfo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(store)

	id, err := svc.CreateEvent(ctx, "tok-admin", validEvent())
	require.NoError(t, err)

	require.NoError(t, store.Ledger().Reserve(ctx, id, 30))

	info, err := svc.SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, info.TotalSeats)
	assert.Equal(t, 70, info.AvailableSeats)
}
