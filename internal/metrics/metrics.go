package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	seatsHeld = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_booking_seats_held_total",
			Help: "Seats moved to holding",
		},
	)

	seatHoldRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_booking_seat_hold_rejected_total",
			Help: "Requested seats that could not be held",
		},
		[]string{"reason"},
	)

	seatsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_booking_seats_released_total",
			Help: "Seats moved back to available",
		},
		[]string{"source"},
	)

	bookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_booking_bookings_created_total",
			Help: "Booking creation attempts by result",
		},
		[]string{"result"},
	)

	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_booking_booking_transitions_total",
			Help: "Booking status transitions",
		},
		[]string{"to"},
	)
)

func SeatsHeld(n int) {
	seatsHeld.Add(float64(n))
}

func SeatHoldRejected(reason string, n int) {
	if n == 0 {
		return
	}
	seatHoldRejected.WithLabelValues(reason).Add(float64(n))
}

// SeatsReleased counts releases by source: "client", "sweep" or "booking".
func SeatsReleased(source string, n int) {
	if n == 0 {
		return
	}
	seatsReleased.WithLabelValues(source).Add(float64(n))
}

func BookingCreated(result string) {
	bookingsCreated.WithLabelValues(result).Inc()
}

func BookingTransition(to string) {
	bookingTransitions.WithLabelValues(to).Inc()
}
