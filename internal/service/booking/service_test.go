package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/identity"
	"github.com/soluret/seatbook/internal/repository/memory"
	"github.com/soluret/seatbook/internal/service/ports"
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
	"tok-alice": {UserID: 1, Role: domain.RoleUser},
	"tok-bob":   {UserID: 2, Role: domain.RoleUser},
	"tok-admin": {UserID: 99, Role: domain.RoleAdmin},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, store *memory.Store) *Service {
	t.Helper()
	return New(store.Ledger(), store.Bookings(), testVerifier, nil, nil, nil,
		discardLogger(), Config{MaxTicketsPerBooking: 10})
}

func newTestEvent(t *testing.T, store *memory.Store, seats int) int64 {
	t.Helper()

	id, err := store.Events().Create(context.Background(), &domain.Event{
		Name:       "gig",
		Venue:      "arena",
		StartsAt:   time.Now().Add(24 * time.Hour),
		TotalSeats: seats,
	})
	require.NoError(t, err)

	return id
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, int64(1), b.UserID)
	assert.Equal(t, 3, b.TicketCount)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 7, info.AvailableSeats)
}

func TestCreateBookingUnauthorized(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	_, err := svc.Create(context.Background(), "bad-token", eventID, 1, "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateBookingInvalidQuantity(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	for _, qty := range []int{0, -1, 11} {
		_, err := svc.Create(context.Background(), "tok-alice", eventID, qty, "")
		require.ErrorIs(t, err, ErrInvalidQuantity, "qty=%d", qty)
	}
}

func TestCreateBookingEventErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)

	_, err := svc.Create(ctx, "tok-alice", 42, 1, "")
	require.ErrorIs(t, err, ErrEventNotFound)

	eventID := newTestEvent(t, store, 2)
	_, err = svc.Create(ctx, "tok-alice", eventID, 3, "")
	require.ErrorIs(t, err, ErrInsufficientSeats)

	require.NoError(t, store.Events().Cancel(ctx, eventID))
	_, err = svc.Create(ctx, "tok-alice", eventID, 1, "")
	require.ErrorIs(t, err, ErrEventCancelled)
}

func TestCreateBookingDuplicateActive(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	_, err := svc.Create(ctx, "tok-alice", eventID, 1, "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "tok-alice", eventID, 1, "")
	require.ErrorIs(t, err, ErrDuplicateBooking)

	// No seats were burned on the rejection.
	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 9, info.AvailableSeats)
}

// failingBookingStore rejects Create to force the compensation path.
type failingBookingStore struct {
	ports.BookingStore
}

func (f *failingBookingStore) Create(ctx context.Context, b *domain.Booking) error {
	return errors.New("disk on fire")
}

func TestCreateBookingCompensatesReserveOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eventID := newTestEvent(t, store, 10)

	svc := New(store.Ledger(), &failingBookingStore{BookingStore: store.Bookings()},
		testVerifier, nil, nil, nil, discardLogger(), Config{})

	_, err := svc.Create(ctx, "tok-alice", eventID, 4, "")
	require.ErrorIs(t, err, ErrPersistence)

	// The reserved seats came back.
	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestConfirmBooking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 2, "")
	require.NoError(t, err)

	got, err := svc.Confirm(ctx, "tok-alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)

	// Seats stay reserved on confirm.
	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 8, info.AvailableSeats)

	// Confirming twice hits the stale transition.
	_, err = svc.Confirm(ctx, "tok-alice", b.ID)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestConfirmBookingForbidden(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 2, "")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "tok-bob", b.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConfirmBookingNotFound(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store)

	_, err := svc.Confirm(context.Background(), "tok-alice", uuid.New())
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBookingReleasesSeats(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 4, "")
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, "tok-alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestCancelConfirmedBooking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 4, "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, "tok-alice", b.ID)
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, "tok-alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestCancelBookingIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 4, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "tok-alice", b.ID)
	require.NoError(t, err)

	// Second cancel is a no-op and must not release seats again.
	got, err := svc.Cancel(ctx, "tok-alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestCancelBookingByAdmin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 1, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "tok-bob", b.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Cancel(ctx, "tok-admin", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
}

// Concurrent cancels of one booking: the seats come back exactly once.
func TestCancelBookingConcurrentSingleRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 3, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Cancel(ctx, "tok-alice", b.ID)
		}()
	}
	wg.Wait()

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestGetBookingVisibility(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)
	eventID := newTestEvent(t, store, 10)

	b, err := svc.Create(ctx, "tok-alice", eventID, 1, "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, "tok-alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = svc.Get(ctx, "tok-bob", b.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, "tok-admin", b.ID)
	require.NoError(t, err)
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newService(t, store)

	first := newTestEvent(t, store, 10)
	second := newTestEvent(t, store, 10)

	_, err := svc.Create(ctx, "tok-alice", first, 1, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "tok-alice", second, 1, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "tok-bob", first, 1, "")
	require.NoError(t, err)

	out, err := svc.List(ctx, "tok-alice")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
