package httpgin

import "time"

type CreateBookingRequest struct {
	EventID     int64 `json:"event_id" binding:"required"`
	TicketCount int   `json:"ticket_count" binding:"required,gt=0"`
}

type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Venue       string `json:"venue" binding:"required"`
	StartsAt    string `json:"starts_at" binding:"required"`
	TotalSeats  int    `json:"total_seats" binding:"required,gt=0"`
	PriceCents  int64  `json:"price_cents" binding:"gte=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
