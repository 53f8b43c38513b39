package trips

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TripUseCase interface {
	List(ctx context.Context, filter domain.TripFilter) ([]domain.TripAvailability, error)
	Get(ctx context.Context, id string) (*domain.Trip, error)
	Create(ctx context.Context, input CreateTripInput) (*domain.Trip, error)
	CreateBatch(ctx context.Context, input CreateTripInput, dates []string) ([]domain.Trip, error)
}

// TripCache is satisfied by cache.RedisCache. A miss is (nil, nil).
type TripCache interface {
	GetTrip(ctx context.Context, id string) (*domain.Trip, error)
	SetTrip(ctx context.Context, trip *domain.Trip) error
}

type CreateTripInput struct {
	FromStation     string          `json:"from_station"`
	ToStation       string          `json:"to_station"`
	Date            string          `json:"date"`
	DepartureTime   string          `json:"departure_time"`
	ArrivalTime     string          `json:"arrival_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	BusType         domain.BusType  `json:"bus_type"`
	TotalSeats      int             `json:"total_seats"`
	Amenities       []string        `json:"amenities"`
}

const (
	dateLayout   = "2006-01-02"
	clockLayout  = "15:04"
	maxTripSeats = 100
)

// maxTripPrice keeps a full-bus booking total inside NUMERIC(12, 2).
var maxTripPrice = decimal.NewFromInt(99_999_999)

type TripService struct {
	repo  repository.TripRepository
	cache TripCache
	now   func() time.Time
	log   *zap.Logger
}

type TripServiceOption func(*TripService)

func WithCache(cache TripCache) TripServiceOption {
	return func(s *TripService) {
		s.cache = cache
	}
}

func WithClock(now func() time.Time) TripServiceOption {
	return func(s *TripService) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) TripServiceOption {
	return func(s *TripService) {
		s.log = logger.OrNop(log)
	}
}

func NewTripService(repo repository.TripRepository, opts ...TripServiceOption) *TripService {
	s := &TripService{repo: repo, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List is never cached: the seat counts depend on hold deadlines relative to now.
func (s *TripService) List(ctx context.Context, filter domain.TripFilter) ([]domain.TripAvailability, error) {
	if filter.Date != "" {
		if _, err := time.Parse(dateLayout, filter.Date); err != nil {
			return nil, domain.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
		}
	}
	return s.repo.List(ctx, filter, s.now())
}

func (s *TripService) Get(ctx context.Context, id string) (*domain.Trip, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrip(ctx, id)
		if err != nil {
			s.log.Warn("trip cache read failed", zap.String("trip_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetTrip(ctx, trip); err != nil {
			s.log.Warn("trip cache write failed", zap.String("trip_id", id), zap.Error(err))
		}
	}
	return trip, nil
}

func (s *TripService) Create(ctx context.Context, input CreateTripInput) (*domain.Trip, error) {
	trip, err := s.buildTrip(input)
	if err != nil {
		return nil, err
	}
	seats := layoutSeats(trip)
	if err := s.repo.Create(ctx, trip, seats); err != nil {
		return nil, err
	}
	s.log.Info("trip created",
		zap.String("trip_id", trip.ID),
		zap.String("from", trip.FromStation),
		zap.String("to", trip.ToStation),
		zap.String("date", trip.Date),
		zap.Int("seats", len(seats)))
	return trip, nil
}

// CreateBatch creates the same trip on each date. Dates are validated up
// front, then each trip is written in its own transaction; on failure the
// trips already created are returned with the error.
func (s *TripService) CreateBatch(ctx context.Context, input CreateTripInput, dates []string) ([]domain.Trip, error) {
	if len(dates) == 0 {
		return nil, domain.ValidationError{Field: "dates", Msg: "at least one date is required"}
	}
	for _, d := range dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return nil, domain.ValidationError{Field: "dates", Msg: "invalid date " + d}
		}
	}

	created := make([]domain.Trip, 0, len(dates))
	for _, d := range dates {
		in := input
		in.Date = d
		trip, err := s.Create(ctx, in)
		if err != nil {
			return created, err
		}
		created = append(created, *trip)
	}
	return created, nil
}

func (s *TripService) buildTrip(input CreateTripInput) (*domain.Trip, error) {
	from := strings.TrimSpace(input.FromStation)
	to := strings.TrimSpace(input.ToStation)
	if from == "" {
		return nil, domain.ValidationError{Field: "from_station", Msg: "is required"}
	}
	if to == "" {
		return nil, domain.ValidationError{Field: "to_station", Msg: "is required"}
	}
	if strings.EqualFold(from, to) {
		return nil, domain.ValidationError{Field: "to_station", Msg: "must differ from from_station"}
	}
	if _, err := time.Parse(dateLayout, input.Date); err != nil {
		return nil, domain.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}
	departure, err := time.Parse(clockLayout, input.DepartureTime)
	if err != nil {
		return nil, domain.ValidationError{Field: "departure_time", Msg: "time must be HH:MM"}
	}
	arrival, err := time.Parse(clockLayout, input.ArrivalTime)
	if err != nil {
		return nil, domain.ValidationError{Field: "arrival_time", Msg: "time must be HH:MM"}
	}
	if input.Price.IsNegative() {
		return nil, domain.ValidationError{Field: "price", Msg: "must not be negative"}
	}
	if input.Price.GreaterThan(maxTripPrice) {
		return nil, domain.ValidationError{Field: "price", Msg: "must not exceed " + maxTripPrice.String()}
	}
	if !input.Price.Equal(input.Price.Round(2)) {
		return nil, domain.ValidationError{Field: "price", Msg: "at most 2 decimal places"}
	}
	busType := input.BusType
	if busType == "" {
		busType = domain.BusTypeSeat
	}
	if !busType.Valid() {
		return nil, domain.ValidationError{Field: "bus_type", Msg: "unknown bus type"}
	}
	if input.TotalSeats <= 0 || input.TotalSeats > maxTripSeats {
		return nil, domain.ValidationError{Field: "total_seats", Msg: "must be between 1 and 100"}
	}

	duration := input.DurationMinutes
	if duration <= 0 {
		d := arrival.Sub(departure)
		if d <= 0 {
			// overnight trip
			d += 24 * time.Hour
		}
		duration = int(d.Minutes())
	}
	amenities := input.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	return &domain.Trip{
		ID:              uuid.NewString(),
		FromStation:     from,
		ToStation:       to,
		Date:            input.Date,
		DepartureTime:   input.DepartureTime,
		ArrivalTime:     input.ArrivalTime,
		DurationMinutes: duration,
		Price:           input.Price,
		BusType:         busType,
		TotalSeats:      input.TotalSeats,
		Amenities:       amenities,
		CreatedAt:       s.now().UTC(),
	}, nil
}

func layoutSeats(trip *domain.Trip) []domain.Seat {
	seats := domain.SeatLayout(trip.ID, trip.BusType, trip.TotalSeats)
	for i := range seats {
		seats[i].ID = uuid.NewString()
	}
	return seats
}

var _ TripUseCase = (*TripService)(nil)
