package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type BusType string

const (
	BusTypeSeat      BusType = "seat"
	BusTypeSleeper   BusType = "sleeper"
	BusTypeLimousine BusType = "limousine"
)

func (t BusType) Valid() bool {
	switch t {
	case BusTypeSeat, BusTypeSleeper, BusTypeLimousine:
		return true
	}
	return false
}

// Floors is the number of decks the seat layout is spread over.
func (t BusType) Floors() int {
	switch t {
	case BusTypeSleeper, BusTypeLimousine:
		return 2
	default:
		return 1
	}
}

type Trip struct {
	ID              string          `json:"id"`
	FromStation     string          `json:"from_station"`
	ToStation       string          `json:"to_station"`
	Date            string          `json:"date"`
	DepartureTime   string          `json:"departure_time"`
	ArrivalTime     string          `json:"arrival_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	BusType         BusType         `json:"bus_type"`
	TotalSeats      int             `json:"total_seats"`
	Amenities       []string        `json:"amenities"`
	CreatedAt       time.Time       `json:"created_at"`
}

type TripFilter struct {
	From string
	To   string
	Date string
}

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHolding   SeatStatus = "holding"
	SeatStatusBooked    SeatStatus = "booked"
)

func (s SeatStatus) Valid() bool {
	switch s {
	case SeatStatusAvailable, SeatStatusHolding, SeatStatusBooked:
		return true
	}
	return false
}

type Seat struct {
	ID        string     `json:"id"`
	TripID    string     `json:"trip_id"`
	Number    string     `json:"number"`
	Row       int        `json:"row"`
	Floor     int        `json:"floor"`
	Status    SeatStatus `json:"status"`
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}

// HoldExpired reports whether the seat carries a hold that no longer counts.
func (s Seat) HoldExpired(now time.Time) bool {
	if s.Status != SeatStatusHolding {
		return false
	}
	return s.HoldUntil == nil || !s.HoldUntil.After(now)
}

// EffectiveStatus is the status every availability read must use: an expired
// hold reads as available even before the sweep has rewritten the row.
func (s Seat) EffectiveStatus(now time.Time) SeatStatus {
	if s.HoldExpired(now) {
		return SeatStatusAvailable
	}
	return s.Status
}

// Holdable reports whether a hold may be placed on the seat at now.
func (s Seat) Holdable(now time.Time) bool {
	return s.EffectiveStatus(now) == SeatStatusAvailable
}

// Committable reports whether the seat may be flipped to booked.
func (s Seat) Committable() bool {
	return s.Status == SeatStatusAvailable || s.Status == SeatStatusHolding
}

// Normalize rewrites an expired hold in place.
func (s *Seat) Normalize(now time.Time) {
	if s.HoldExpired(now) {
		s.Status = SeatStatusAvailable
		s.HoldUntil = nil
	}
}

const seatsPerRow = 4

// SeatLayout lays out total seats over the floors of the bus type. Rows are
// lettered from A and keep counting across floors so seat numbers stay unique
// within a trip.
func SeatLayout(tripID string, busType BusType, total int) []Seat {
	if total <= 0 {
		return nil
	}
	floors := busType.Floors()
	perFloor := (total + floors - 1) / floors
	seats := make([]Seat, 0, total)
	letter := 0
	for floor := 1; floor <= floors && len(seats) < total; floor++ {
		rows := 0
		for i := 0; i < perFloor && len(seats) < total; i++ {
			row := i / seatsPerRow
			rows = row + 1
			seats = append(seats, Seat{
				TripID: tripID,
				Number: rowLetter(letter+row) + strconv.Itoa(i%seatsPerRow+1),
				Row:    row,
				Floor:  floor,
				Status: SeatStatusAvailable,
			})
		}
		letter += rows
	}
	return seats
}

func rowLetter(n int) string {
	letters := ""
	for n >= 0 {
		letters = string(rune('A'+n%26)) + letters
		n = n/26 - 1
	}
	return letters
}

// TripAvailability is a trip together with the number of seats free right now.
type TripAvailability struct {
	Trip
	AvailableSeats int `json:"available_seats"`
}
