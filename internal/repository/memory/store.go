// Package memory is a storage backend holding the whole booking state in
// process memory. It implements the same ports as the postgres backend and
// is selected with STORAGE=memory; the concurrency tests also run against
// it because its locking mirrors the production atomicity contracts.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/soluret/seatbook/internal/domain"
)

type eventRec struct {
	mu sync.Mutex // serializes seat mutations for this event only
	ev domain.Event
}

type Store struct {
	evMu        sync.RWMutex
	events      map[int64]*eventRec
	nextEventID int64

	bkMu     sync.Mutex
	bookings map[uuid.UUID]*domain.Booking
}

func NewStore() *Store {
	return &Store{
		events:   make(map[int64]*eventRec),
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

// The accessors return views over the shared state, matching the postgres
// store's shape so both backends wire identically.

func (s *Store) Ledger() *Ledger     { return &Ledger{s: s} }
func (s *Store) Bookings() *Bookings { return &Bookings{s: s} }
func (s *Store) Events() *Events     { return &Events{s: s} }

type Ledger struct{ s *Store }
type Bookings struct{ s *Store }
type Events struct{ s *Store }

// event looks up the record without holding its per-event lock.
func (s *Store) event(id int64) (*eventRec, bool) {
	s.evMu.RLock()
	defer s.evMu.RUnlock()

	rec, ok := s.events[id]
	return rec, ok
}
