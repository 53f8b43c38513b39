package seats

import (
	"context"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/metrics"
	"github.com/Domenick1991/busbooking/internal/repository"
	"go.uber.org/zap"
)

type LedgerUseCase interface {
	Hold(ctx context.Context, tripID string, seatIDs []string) (*HoldResult, error)
	Release(ctx context.Context, tripID string, seatIDs []string) ([]string, error)
	ListSeats(ctx context.Context, tripID string) ([]domain.Seat, error)
	SweepExpired(ctx context.Context) ([]domain.Seat, error)
}

// TripGetter resolves a trip, usually through the trip cache.
type TripGetter interface {
	Get(ctx context.Context, id string) (*domain.Trip, error)
}

// HoldResult separates the seats that were held from the ones that were not.
// Unavailable seats exist under the trip but are booked or held by someone
// else; Missing seats do not belong to the trip at all.
type HoldResult struct {
	Held        []domain.Seat `json:"held"`
	Unavailable []string      `json:"unavailable"`
	Missing     []string      `json:"missing"`
	HoldUntil   time.Time     `json:"hold_until"`
}

// Complete reports whether every requested seat was held.
func (r *HoldResult) Complete() bool {
	return len(r.Unavailable) == 0 && len(r.Missing) == 0
}

const DefaultHoldTTL = 15 * time.Minute

type Ledger struct {
	trips   TripGetter
	seats   repository.SeatRepository
	holdTTL time.Duration
	now     func() time.Time
	log     *zap.Logger
}

type LedgerOption func(*Ledger)

func WithHoldTTL(ttl time.Duration) LedgerOption {
	return func(l *Ledger) {
		if ttl > 0 {
			l.holdTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(log *zap.Logger) LedgerOption {
	return func(l *Ledger) {
		l.log = logger.OrNop(log)
	}
}

func NewLedger(trips TripGetter, seats repository.SeatRepository, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		trips:   trips,
		seats:   seats,
		holdTTL: DefaultHoldTTL,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hold places a time-boxed hold on every requested seat that is free right
// now. It never fails because some seats were taken; the result lists them.
func (l *Ledger) Hold(ctx context.Context, tripID string, seatIDs []string) (*HoldResult, error) {
	ids := dedupe(seatIDs)
	if len(ids) == 0 {
		return nil, domain.ValidationError{Field: "seat_ids", Msg: "at least one seat is required"}
	}
	if _, err := l.trips.Get(ctx, tripID); err != nil {
		return nil, err
	}

	now := l.now()
	until := now.Add(l.holdTTL)
	heldIDs, err := l.seats.Hold(ctx, tripID, ids, until, now)
	if err != nil {
		return nil, err
	}

	result := &HoldResult{
		Held:        []domain.Seat{},
		Unavailable: []string{},
		Missing:     []string{},
		HoldUntil:   until,
	}
	held := toSet(heldIDs)
	var rest []string
	for _, id := range ids {
		if !held[id] {
			rest = append(rest, id)
		}
	}

	if len(heldIDs) > 0 {
		seats, err := l.seats.ListByIDs(ctx, tripID, heldIDs)
		if err != nil {
			return nil, err
		}
		result.Held = seats
	}
	if len(rest) > 0 {
		existing, err := l.seats.ListByIDs(ctx, tripID, rest)
		if err != nil {
			return nil, err
		}
		found := make(map[string]bool, len(existing))
		for _, s := range existing {
			found[s.ID] = true
		}
		for _, id := range rest {
			if found[id] {
				result.Unavailable = append(result.Unavailable, id)
			} else {
				result.Missing = append(result.Missing, id)
			}
		}
	}

	metrics.SeatsHeld(len(heldIDs))
	metrics.SeatHoldRejected(string(domain.SeatsUnavailable), len(result.Unavailable))
	metrics.SeatHoldRejected(string(domain.SeatsNotFound), len(result.Missing))
	l.log.Info("seats held",
		zap.String("trip_id", tripID),
		zap.Int("requested", len(ids)),
		zap.Int("held", len(heldIDs)),
		zap.Strings("unavailable", result.Unavailable),
		zap.Strings("missing", result.Missing),
		zap.Time("hold_until", until))
	return result, nil
}

// Release drops holds on the trip's seats. Seats that are not holding, or
// belong to another trip, are left alone, so the call is safe to retry.
func (l *Ledger) Release(ctx context.Context, tripID string, seatIDs []string) ([]string, error) {
	ids := dedupe(seatIDs)
	if len(ids) == 0 {
		return []string{}, nil
	}
	released, err := l.seats.Release(ctx, tripID, ids)
	if err != nil {
		return nil, err
	}
	metrics.SeatsReleased("client", len(released))
	l.log.Info("seats released", zap.String("trip_id", tripID), zap.Int("requested", len(ids)), zap.Int("released", len(released)))
	return released, nil
}

// ListSeats returns the trip's seat map with expired holds shown as available.
func (l *Ledger) ListSeats(ctx context.Context, tripID string) ([]domain.Seat, error) {
	if _, err := l.trips.Get(ctx, tripID); err != nil {
		return nil, err
	}
	seats, err := l.seats.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	for i := range seats {
		seats[i].Normalize(now)
	}
	return seats, nil
}

// SweepExpired rewrites expired holds to available.
func (l *Ledger) SweepExpired(ctx context.Context) ([]domain.Seat, error) {
	swept, err := l.seats.ReleaseExpired(ctx, l.now())
	if err != nil {
		return nil, err
	}
	metrics.SeatsReleased("sweep", len(swept))
	if len(swept) > 0 {
		l.log.Info("expired holds swept", zap.Int("seats", len(swept)))
	}
	return swept, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

var _ LedgerUseCase = (*Ledger)(nil)
