package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type PGSeatRepository struct {
	db DB
}

func NewSeatRepository(db DB) SeatRepository {
	return &PGSeatRepository{db: db}
}

const seatColumns = `s.id, s.trip_id, s.number, s.seat_row, s.floor, s.status, s.hold_until`

func scanSeat(row pgx.Row, extra ...any) (domain.Seat, error) {
	var s domain.Seat
	dest := append(extra, &s.ID, &s.TripID, &s.Number, &s.Row, &s.Floor, &s.Status, &s.HoldUntil)
	err := row.Scan(dest...)
	return s, err
}

func collectSeats(rows pgx.Rows) ([]domain.Seat, error) {
	defer rows.Close()
	seats := make([]domain.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGSeatRepository) ListByTrip(ctx context.Context, tripID string) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `SELECT `+seatColumns+` FROM seats s WHERE s.trip_id = $1 ORDER BY s.floor, s.seat_row, s.number`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return collectSeats(rows)
}

func (r *PGSeatRepository) ListByIDs(ctx context.Context, tripID string, ids []string) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `SELECT `+seatColumns+` FROM seats s WHERE s.trip_id = $1 AND s.id = ANY($2) ORDER BY s.floor, s.seat_row, s.number`, tripID, ids)
	if err != nil {
		return nil, fmt.Errorf("list seats by id: %w", err)
	}
	return collectSeats(rows)
}

func (r *PGSeatRepository) Hold(ctx context.Context, tripID string, ids []string, until, now time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `UPDATE seats SET status = 'holding', hold_until = $3
		WHERE trip_id = $1 AND id = ANY($2)
			AND (status = 'available' OR (status = 'holding' AND (hold_until IS NULL OR hold_until <= $4)))
		RETURNING id`, tripID, ids, until, now)
	if err != nil {
		return nil, fmt.Errorf("hold seats: %w", err)
	}
	return collectIDs(rows)
}

func (r *PGSeatRepository) Release(ctx context.Context, tripID string, ids []string) ([]string, error) {
	rows, err := r.db.Query(ctx, `UPDATE seats SET status = 'available', hold_until = NULL
		WHERE trip_id = $1 AND id = ANY($2) AND status = 'holding'
		RETURNING id`, tripID, ids)
	if err != nil {
		return nil, fmt.Errorf("release seats: %w", err)
	}
	return collectIDs(rows)
}

func (r *PGSeatRepository) ReleaseExpired(ctx context.Context, now time.Time) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `UPDATE seats s SET status = 'available', hold_until = NULL
		WHERE s.status = 'holding' AND (s.hold_until IS NULL OR s.hold_until <= $1)
		RETURNING `+seatColumns, now)
	if err != nil {
		return nil, fmt.Errorf("release expired holds: %w", err)
	}
	return collectSeats(rows)
}

// commitSeats locks the requested seats and flips them to booked. It must run
// inside the transaction that writes the owning booking.
func commitSeats(ctx context.Context, tx pgx.Tx, tripID string, ids []string) error {
	rows, err := tx.Query(ctx, `SELECT id, status FROM seats WHERE trip_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`, tripID, ids)
	if err != nil {
		return fmt.Errorf("lock seats: %w", err)
	}
	found := make(map[string]domain.SeatStatus, len(ids))
	for rows.Next() {
		var (
			id     string
			status domain.SeatStatus
		)
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked seat: %w", err)
		}
		found[id] = status
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock seats: %w", err)
	}

	if err := checkCommittable(ids, func(id string) (domain.SeatStatus, bool) {
		status, ok := found[id]
		return status, ok
	}); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE seats SET status = 'booked', hold_until = NULL WHERE id = ANY($1) AND status <> 'booked'`, ids)
	if err != nil {
		return fmt.Errorf("book seats: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return domain.InvalidSeatSelectionError{Reason: domain.SeatsUnavailable}
	}
	return nil
}

// uncommitSeats frees the booked seats of a booking inside tx.
func uncommitSeats(ctx context.Context, tx pgx.Tx, bookingID string) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE seats SET status = 'available', hold_until = NULL
		WHERE id IN (SELECT seat_id FROM booking_seats WHERE booking_id = $1) AND status = 'booked'`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("release booked seats: %w", err)
	}
	return tag.RowsAffected(), nil
}

// checkCommittable applies the commit rule shared by every store: all seats
// must exist under the trip, none may be booked. Missing seats win over
// unavailable ones so the client sees the more fundamental problem.
func checkCommittable(ids []string, lookup func(id string) (domain.SeatStatus, bool)) error {
	var missing, taken []string
	for _, id := range ids {
		status, ok := lookup(id)
		switch {
		case !ok:
			missing = append(missing, id)
		case status != domain.SeatStatusAvailable && status != domain.SeatStatusHolding:
			taken = append(taken, id)
		}
	}
	if len(missing) > 0 {
		return domain.InvalidSeatSelectionError{Reason: domain.SeatsNotFound, SeatIDs: missing}
	}
	if len(taken) > 0 {
		return domain.InvalidSeatSelectionError{Reason: domain.SeatsUnavailable, SeatIDs: taken}
	}
	return nil
}

var _ SeatRepository = (*PGSeatRepository)(nil)
