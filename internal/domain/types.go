package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventOpen      EventStatus = "OPEN"
	EventSoldOut   EventStatus = "SOLD_OUT"
	EventCancelled EventStatus = "CANCELLED"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// ActiveStatuses are the booking states that count against an event's
// seat inventory.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

// Terminal reports whether no further transition may leave the status.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingExpired
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity is the resolved caller of a request.
type Identity struct {
	UserID int64
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Event struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Venue          string      `json:"venue"`
	StartsAt       time.Time   `json:"starts_at"`
	TotalSeats     int         `json:"total_seats"`
	AvailableSeats int         `json:"available_seats"`
	PriceCents     int64       `json:"price_cents"`
	Status         EventStatus `json:"status"`
	OrganizerID    int64       `json:"organizer_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// SeatInfo is the slice of event state the booking path needs.
type SeatInfo struct {
	TotalSeats     int         `json:"total_seats"`
	AvailableSeats int         `json:"available_seats"`
	Status         EventStatus `json:"status"`
}

type Booking struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int64         `json:"user_id"`
	EventID     int64         `json:"event_id"`
	TicketCount int           `json:"ticket_count"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
