package sweeper

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
	"github.com/soluret/seatbook/internal/repository/memory"
	"github.com/soluret/seatbook/internal/service/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSweeper(store *memory.Store, ttl time.Duration) *Sweeper {
	return New(store.Ledger(), store.Bookings(), discardLogger(), Config{
		Interval: time.Minute,
		TTL:      ttl,
	})
}

func seedEvent(t *testing.T, store *memory.Store, seats int) int64 {
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

func seedBooking(t *testing.T, store *memory.Store, userID, eventID int64, qty int, age time.Duration) *domain.Booking {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.Ledger().Reserve(ctx, eventID, qty))

	created := time.Now().UTC().Add(-age)
	b := &domain.Booking{
		ID:          uuid.New(),
		UserID:      userID,
		EventID:     eventID,
		TicketCount: qty,
		Status:      domain.BookingPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, store.Bookings().Create(ctx, b))

	return b
}

func TestSweepExpiresStalePending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eventID := seedEvent(t, store, 10)

	stale := seedBooking(t, store, 1, eventID, 3, time.Hour)
	fresh := seedBooking(t, store, 2, eventID, 2, time.Minute)

	sw := newSweeper(store, 15*time.Minute)
	require.NoError(t, sw.Sweep(ctx))

	got, err := store.Bookings().FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, got.Status)

	got, err = store.Bookings().FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)

	// Only the stale booking's seats came back.
	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 8, info.AvailableSeats)
}

func TestSweepSkipsConfirmed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eventID := seedEvent(t, store, 10)

	b := seedBooking(t, store, 1, eventID, 3, time.Hour)
	require.NoError(t, store.Bookings().UpdateStatus(ctx, b.ID, domain.BookingPending, domain.BookingConfirmed))

	sw := newSweeper(store, 15*time.Minute)
	require.NoError(t, sw.Sweep(ctx))

	got, err := store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 7, info.AvailableSeats)
}

// A cancel racing the sweep: whichever transition wins owns the release,
// so the seats come back exactly once.
func TestSweepVersusCancelSingleRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eventID := seedEvent(t, store, 10)

	b := seedBooking(t, store, 1, eventID, 4, time.Hour)

	sw := newSweeper(store, 15*time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = sw.Sweep(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := store.Bookings().UpdateStatus(ctx, b.ID, domain.BookingPending, domain.BookingCancelled); err == nil {
			_ = store.Ledger().Release(ctx, b.EventID, b.TicketCount)
		}
	}()
	wg.Wait()

	got, err := store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

// flakyLedger fails Release a set number of times before letting it through.
type flakyLedger struct {
	ports.SeatLedger

	mu       sync.Mutex
	failures int
}

func (f *flakyLedger) Release(ctx context.Context, eventID int64, qty int) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("redis sneezed")
	}
	f.mu.Unlock()

	return f.SeatLedger.Release(ctx, eventID, qty)
}

func TestSweepRetriesFailedRelease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	eventID := seedEvent(t, store, 10)

	b := seedBooking(t, store, 1, eventID, 4, time.Hour)

	ledger := &flakyLedger{SeatLedger: store.Ledger(), failures: 1}
	sw := New(ledger, store.Bookings(), discardLogger(), Config{
		Interval: time.Minute,
		TTL:      15 * time.Minute,
	})

	// First pass expires the booking but the release fails.
	require.NoError(t, sw.Sweep(ctx))

	got, err := store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingExpired, got.Status)

	info, err := store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 6, info.AvailableSeats)

	// Next pass drains the retry queue.
	require.NoError(t, sw.Sweep(ctx))

	info, err = store.Events().SeatInfo(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.AvailableSeats)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	sw := New(store.Ledger(), store.Bookings(), discardLogger(), Config{
		Interval: 10 * time.Millisecond,
		TTL:      time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sw.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
