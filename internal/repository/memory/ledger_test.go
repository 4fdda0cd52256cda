package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soluret/seatbook/internal/domain"
	"github.com/soluret/seatbook/internal/repository"
)

func newEvent(t *testing.T, s *Store, seats int) int64 {
	t.Helper()

	id, err := s.Events().Create(context.Background(), &domain.Event{
		Name:       "gig",
		Venue:      "arena",
		StartsAt:   time.Now().Add(24 * time.Hour),
		TotalSeats: seats,
	})
	require.NoError(t, err)

	return id
}

func TestLedgerReserve(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 10)

	require.NoError(t, s.Ledger().Reserve(ctx, id, 4))

	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, info.AvailableSeats)
	assert.Equal(t, domain.EventOpen, info.Status)
}

func TestLedgerReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 3)

	err := s.Ledger().Reserve(ctx, id, 4)
	require.ErrorIs(t, err, repository.ErrInsufficientSeats)

	// Counter untouched after the rejection.
	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, info.AvailableSeats)
}

func TestLedgerReserveUnknownEvent(t *testing.T) {
	s := NewStore()

	err := s.Ledger().Reserve(context.Background(), 42, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLedgerReserveCancelledEvent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 10)

	require.NoError(t, s.Events().Cancel(ctx, id))

	err := s.Ledger().Reserve(ctx, id, 1)
	require.ErrorIs(t, err, repository.ErrEventCancelled)
}

func TestLedgerSoldOutFlipAndReopen(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 5)

	require.NoError(t, s.Ledger().Reserve(ctx, id, 5))

	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.AvailableSeats)
	assert.Equal(t, domain.EventSoldOut, info.Status)

	require.NoError(t, s.Ledger().Release(ctx, id, 2))

	info, err = s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, info.AvailableSeats)
	assert.Equal(t, domain.EventOpen, info.Status)
}

func TestLedgerReleaseCapsAtTotal(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 5)

	require.NoError(t, s.Ledger().Reserve(ctx, id, 2))

	err := s.Ledger().Release(ctx, id, 3)
	require.ErrorIs(t, err, repository.ErrReleaseOverflow)

	// Clamped at total, never above.
	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, info.AvailableSeats)
}

func TestLedgerReleaseCancelledKeepsStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := newEvent(t, s, 5)

	require.NoError(t, s.Ledger().Reserve(ctx, id, 2))
	require.NoError(t, s.Events().Cancel(ctx, id))
	require.NoError(t, s.Ledger().Release(ctx, id, 2))

	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, info.Status)
	assert.Equal(t, 5, info.AvailableSeats)
}

// Many goroutines race to reserve one seat each; exactly total_seats of
// them may win and the counter must never go negative.
func TestLedgerConcurrentReserveNoOversell(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const (
		seats   = 50
		workers = 200
	)

	id := newEvent(t, s, seats)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Ledger().Reserve(ctx, id, 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, seats, wins)

	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.AvailableSeats)
	assert.Equal(t, domain.EventSoldOut, info.Status)
}

// Interleaved reserves and releases must keep the invariant
// 0 <= available <= total at every observation point.
func TestLedgerConcurrentReserveRelease(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const seats = 20

	id := newEvent(t, s, seats)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Ledger().Reserve(ctx, id, 2); err == nil {
				_ = s.Ledger().Release(ctx, id, 2)
			}
		}()
	}
	wg.Wait()

	info, err := s.Events().SeatInfo(ctx, id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.AvailableSeats, 0)
	assert.LessOrEqual(t, info.AvailableSeats, seats)
	assert.Equal(t, seats, info.AvailableSeats)
}
