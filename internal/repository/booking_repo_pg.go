package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

const orderIDConstraint = "bookings_order_id_key"

const bookingColumns = `b.id, b.order_id, b.trip_id, b.customer_name, b.customer_phone, b.customer_email, COALESCE(b.user_id, ''), b.pickup_point, b.dropoff_point, b.total_price::text, b.payment_method, b.status, b.booked_at, b.updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b     domain.Booking
		total string
	)
	if err := row.Scan(&b.ID, &b.OrderID, &b.TripID, &b.CustomerName, &b.CustomerPhone, &b.CustomerEmail, &b.UserID,
		&b.PickupPoint, &b.DropoffPoint, &total, &b.PaymentMethod, &b.Status, &b.BookedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total price %q: %w", total, err)
	}
	b.TotalPrice = price
	return &b, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := commitSeats(ctx, tx, booking.TripID, booking.SeatIDs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO bookings (id, order_id, trip_id, customer_name, customer_phone, customer_email, user_id, pickup_point, dropoff_point, total_price, payment_method, status, booked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13, $14)`,
		booking.ID, booking.OrderID, booking.TripID, booking.CustomerName, booking.CustomerPhone, booking.CustomerEmail,
		nullable(booking.UserID), booking.PickupPoint, booking.DropoffPoint, booking.TotalPrice.String(),
		string(booking.PaymentMethod), string(booking.Status), booking.BookedAt, booking.UpdatedAt); err != nil {
		if isUniqueViolation(err, orderIDConstraint) {
			return domain.ErrDuplicateOrderID
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO booking_seats (booking_id, seat_id) SELECT $1, unnest($2::text[])`, booking.ID, booking.SeatIDs); err != nil {
		return fmt.Errorf("insert booking seats: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.get(ctx, r.db, id)
}

func (r *PGBookingRepository) get(ctx context.Context, q querier, id string) (*domain.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "booking", ID: id}
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT `+seatColumns+` FROM booking_seats bs JOIN seats s ON s.id = bs.seat_id
		WHERE bs.booking_id = $1 ORDER BY s.floor, s.seat_row, s.number`, id)
	if err != nil {
		return nil, fmt.Errorf("get booking seats: %w", err)
	}
	seats, err := collectSeats(rows)
	if err != nil {
		return nil, err
	}
	attachSeats(b, seats)
	return b, nil
}

func attachSeats(b *domain.Booking, seats []domain.Seat) {
	b.Seats = seats
	b.SeatIDs = make([]string, 0, len(seats))
	for _, s := range seats {
		b.SeatIDs = append(b.SeatIDs, s.ID)
	}
}

func (r *PGBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	if filter.Empty() {
		return []domain.Booking{}, nil
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filter.All {
		if filter.UserID != "" {
			conds = append(conds, "b.user_id = "+arg(filter.UserID))
		}
		if filter.Email != "" {
			conds = append(conds, "(b.customer_email <> '' AND lower(b.customer_email) = lower("+arg(filter.Email)+"))")
		}
		if filter.Query != "" {
			p := arg(filter.Query)
			conds = append(conds, "(b.order_id = "+p+" OR b.customer_phone = "+p+" OR (b.customer_email <> '' AND b.customer_email = "+p+"))")
		}
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings b`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " OR ")
	}
	query += ` ORDER BY b.booked_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]string, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
	}
	seatRows, err := r.db.Query(ctx, `SELECT bs.booking_id, `+seatColumns+` FROM booking_seats bs JOIN seats s ON s.id = bs.seat_id
		WHERE bs.booking_id = ANY($1) ORDER BY s.floor, s.seat_row, s.number`, ids)
	if err != nil {
		return nil, fmt.Errorf("list booking seats: %w", err)
	}
	defer seatRows.Close()
	byBooking := make(map[string][]domain.Seat, len(bookings))
	for seatRows.Next() {
		var bookingID string
		s, err := scanSeat(seatRows, &bookingID)
		if err != nil {
			return nil, fmt.Errorf("scan booking seat: %w", err)
		}
		byBooking[bookingID] = append(byBooking[bookingID], s)
	}
	if err := seatRows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		attachSeats(&bookings[i], byBooking[bookings[i].ID])
	}
	return bookings, nil
}

// lockStatus reads the booking status under a row lock.
func lockStatus(ctx context.Context, tx pgx.Tx, id string) (tripID string, status domain.BookingStatus, err error) {
	err = tx.QueryRow(ctx, `SELECT trip_id, status FROM bookings WHERE id = $1 FOR UPDATE`, id).Scan(&tripID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", domain.NotFoundError{Resource: "booking", ID: id}
	}
	if err != nil {
		return "", "", fmt.Errorf("lock booking: %w", err)
	}
	return tripID, status, nil
}

func (r *PGBookingRepository) Cancel(ctx context.Context, id string) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, status, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, domain.InvalidTransitionError{From: status, To: domain.BookingStatusCancelled}
	}

	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = 'cancelled', updated_at = now() WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if _, err := uncommitSeats(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PGBookingRepository) UpdatePayment(ctx context.Context, id string, method domain.PaymentMethod, confirm bool) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, status, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, domain.InvalidTransitionError{From: status, To: domain.BookingStatusConfirmed}
	}

	next := status
	if confirm && status == domain.BookingStatusPending {
		next = domain.BookingStatusConfirmed
	}
	if _, err := tx.Exec(ctx, `UPDATE bookings SET payment_method = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, string(method), string(next)); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PGBookingRepository) SetStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tripID, current, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case status == domain.BookingStatusCancelled && current != domain.BookingStatusCancelled:
		if _, err := uncommitSeats(ctx, tx, id); err != nil {
			return nil, err
		}
	case current == domain.BookingStatusCancelled && status != domain.BookingStatusCancelled:
		rows, err := tx.Query(ctx, `SELECT seat_id FROM booking_seats WHERE booking_id = $1`, id)
		if err != nil {
			return nil, fmt.Errorf("load booking seats: %w", err)
		}
		seatIDs, err := collectIDs(rows)
		if err != nil {
			return nil, fmt.Errorf("load booking seats: %w", err)
		}
		if len(seatIDs) > 0 {
			if err := commitSeats(ctx, tx, tripID, seatIDs); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, string(status)); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
