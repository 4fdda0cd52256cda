package service

import (
	"github.com/soluret/seatbook/internal/service/booking"
	"github.com/soluret/seatbook/internal/service/directory"
	"github.com/soluret/seatbook/internal/service/sweeper"
)

// Services bundles the application services handed to the transport layer.
type Services struct {
	Booking   *booking.Service
	Directory *directory.Service
	Sweeper   *sweeper.Sweeper
}
