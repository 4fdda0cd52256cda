package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbook_booking_transitions_total",
			Help: "Booking lifecycle transitions by resulting status",
		},
		[]string{"status"},
	)

	reserveOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatbook_seat_reservations_total",
			Help: "Seat reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	seatsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatbook_seats_released_total",
			Help: "Seats returned to inventory by cancellations and expiries",
		},
	)

	sweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatbook_sweeper_runs_total",
			Help: "Completed expiry sweep cycles",
		},
	)

	sweepExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatbook_sweeper_expired_total",
			Help: "Bookings expired by the sweeper",
		},
	)
)

func BookingTransition(status string) { bookingTransitions.WithLabelValues(status).Inc() }

func ReserveOutcome(outcome string) { reserveOutcomes.WithLabelValues(outcome).Inc() }

func SeatsReleased(n int) { seatsReleased.Add(float64(n)) }

func SweepCompleted(expired int) {
	sweepRuns.Inc()
	sweepExpired.Add(float64(expired))
}
