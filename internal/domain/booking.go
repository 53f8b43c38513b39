package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return status, true
	}
	return "", false
}

// Terminal statuses cannot be left through the regular customer operations.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// HoldsSeats reports whether a booking in this status owns its seats.
func (s BookingStatus) HoldsSeats() bool {
	return s != BookingStatusCancelled
}

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodMomo PaymentMethod = "momo"
	PaymentMethodBank PaymentMethod = "bank"
	PaymentMethodCard PaymentMethod = "card"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch method {
	case PaymentMethodCash, PaymentMethodMomo, PaymentMethodBank, PaymentMethodCard:
		return method, true
	}
	return "", false
}

// Prepaid methods confirm the booking as soon as they are chosen.
func (m PaymentMethod) Prepaid() bool {
	return m != PaymentMethodCash
}

type Booking struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	TripID        string          `json:"trip_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	PickupPoint   string          `json:"pickup_point,omitempty"`
	DropoffPoint  string          `json:"dropoff_point,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        BookingStatus   `json:"status"`
	SeatIDs       []string        `json:"seat_ids"`
	Seats         []Seat          `json:"seats,omitempty"`
	Trip          *Trip           `json:"trip,omitempty"`
	BookedAt      time.Time       `json:"booked_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BookingSeat links one booking to one seat.
type BookingSeat struct {
	BookingID string
	SeatID    string
}

func (b *Booking) BookingSeats() []BookingSeat {
	out := make([]BookingSeat, 0, len(b.SeatIDs))
	for _, id := range b.SeatIDs {
		out = append(out, BookingSeat{BookingID: b.ID, SeatID: id})
	}
	return out
}

// BookingFilter selects bookings for listing. All set fields are OR-ed;
// an empty filter with All=false matches nothing.
type BookingFilter struct {
	All    bool
	UserID string
	Email  string
	// Query matches order id, phone or email exactly.
	Query string
}

func (f BookingFilter) Empty() bool {
	return !f.All && f.UserID == "" && f.Email == "" && f.Query == ""
}

func (f BookingFilter) Match(b *Booking) bool {
	if f.All {
		return true
	}
	if f.UserID != "" && b.UserID == f.UserID {
		return true
	}
	if f.Email != "" && b.CustomerEmail != "" && strings.EqualFold(b.CustomerEmail, f.Email) {
		return true
	}
	if f.Query != "" && (b.OrderID == f.Query || b.CustomerPhone == f.Query || (b.CustomerEmail != "" && b.CustomerEmail == f.Query)) {
		return true
	}
	return false
}
