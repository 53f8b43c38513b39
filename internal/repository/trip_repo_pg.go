package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PGTripRepository struct {
	db DB
}

func NewTripRepository(db DB) TripRepository {
	return &PGTripRepository{db: db}
}

const tripColumns = `t.id, t.from_station, t.to_station, t.date::text, to_char(t.departure_time, 'HH24:MI'), to_char(t.arrival_time, 'HH24:MI'), t.duration_minutes, t.price::text, t.bus_type, t.total_seats, t.amenities, t.created_at`

func scanTrip(row pgx.Row, extra ...any) (*domain.Trip, error) {
	var (
		t     domain.Trip
		price string
	)
	dest := append([]any{&t.ID, &t.FromStation, &t.ToStation, &t.Date, &t.DepartureTime, &t.ArrivalTime, &t.DurationMinutes, &price, &t.BusType, &t.TotalSeats, &t.Amenities, &t.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse trip price %q: %w", price, err)
	}
	t.Price = p
	return &t, nil
}

func (r *PGTripRepository) List(ctx context.Context, filter domain.TripFilter, now time.Time) ([]domain.TripAvailability, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+`,
		(SELECT count(*) FROM seats s WHERE s.trip_id = t.id
			AND (s.status = 'available' OR (s.status = 'holding' AND (s.hold_until IS NULL OR s.hold_until <= $4))))
		FROM trips t
		WHERE ($1 = '' OR lower(t.from_station) = lower($1))
			AND ($2 = '' OR lower(t.to_station) = lower($2))
			AND ($3 = '' OR t.date::text = $3)
		ORDER BY t.date, t.departure_time`, filter.From, filter.To, filter.Date, now)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := make([]domain.TripAvailability, 0)
	for rows.Next() {
		var available int
		t, err := scanTrip(rows, &available)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, domain.TripAvailability{Trip: *t, AvailableSeats: available})
	}
	return trips, rows.Err()
}

func (r *PGTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	t, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips t WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "trip", ID: id}
		}
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return t, nil
}

func (r *PGTripRepository) Create(ctx context.Context, trip *domain.Trip, seats []domain.Seat) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO trips (id, from_station, to_station, date, departure_time, arrival_time, duration_minutes, price, bus_type, total_seats, amenities, created_at)
		VALUES ($1, $2, $3, $4::date, $5::time, $6::time, $7, $8::numeric, $9, $10, $11, $12)`,
		trip.ID, trip.FromStation, trip.ToStation, trip.Date, trip.DepartureTime, trip.ArrivalTime,
		trip.DurationMinutes, trip.Price.String(), string(trip.BusType), trip.TotalSeats, trip.Amenities, trip.CreatedAt); err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}

	if len(seats) > 0 {
		ids := make([]string, len(seats))
		numbers := make([]string, len(seats))
		rowsIdx := make([]int32, len(seats))
		floors := make([]int32, len(seats))
		for i, s := range seats {
			ids[i], numbers[i], rowsIdx[i], floors[i] = s.ID, s.Number, int32(s.Row), int32(s.Floor)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO seats (id, trip_id, number, seat_row, floor, status)
			SELECT unnest($1::text[]), $2, unnest($3::text[]), unnest($4::int[]), unnest($5::int[]), 'available'`,
			ids, trip.ID, numbers, rowsIdx, floors); err != nil {
			return fmt.Errorf("insert seats: %w", err)
		}
	}

	return tx.Commit(ctx)
}

var _ TripRepository = (*PGTripRepository)(nil)
