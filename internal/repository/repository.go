package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
)

type TripRepository interface {
	List(ctx context.Context, filter domain.TripFilter, now time.Time) ([]domain.TripAvailability, error)
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	// Create inserts the trip and its seats together.
	Create(ctx context.Context, trip *domain.Trip, seats []domain.Seat) error
}

// SeatRepository is the storage side of the seat ledger. Every status change
// is a conditional update so concurrent callers cannot both win a seat.
type SeatRepository interface {
	ListByTrip(ctx context.Context, tripID string) ([]domain.Seat, error)
	ListByIDs(ctx context.Context, tripID string, ids []string) ([]domain.Seat, error)
	// Hold moves free seats (available or with an expired hold) to holding
	// and returns the ids it actually changed.
	Hold(ctx context.Context, tripID string, ids []string, until, now time.Time) ([]string, error)
	// Release moves the trip's holding seats back to available and returns the ids changed.
	Release(ctx context.Context, tripID string, ids []string) ([]string, error)
	// ReleaseExpired frees every hold whose deadline is not after now.
	ReleaseExpired(ctx context.Context, now time.Time) ([]domain.Seat, error)
}

// BookingRepository persists bookings. Operations that touch seats run the
// seat commit or uncommit in the same transaction as the booking write.
type BookingRepository interface {
	// Create commits booking.SeatIDs to booked and stores the booking with its
	// booking_seats rows. It returns domain.InvalidSeatSelectionError when any
	// seat is missing or already booked and domain.ErrDuplicateOrderID on an
	// order id collision; nothing is written in either case.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	// Cancel moves a pending or confirmed booking to cancelled and frees its seats.
	Cancel(ctx context.Context, id string) (*domain.Booking, error)
	// UpdatePayment sets the payment method on a live booking, confirming a
	// pending one when confirm is true.
	UpdatePayment(ctx context.Context, id string, method domain.PaymentMethod, confirm bool) (*domain.Booking, error)
	// SetStatus applies any status. Leaving cancelled re-commits the seats,
	// entering cancelled frees them.
	SetStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
