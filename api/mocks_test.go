package api

import (
	"context"

	"github.com/Domenick1991/busbooking/internal/auth"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/booking"
	"github.com/Domenick1991/busbooking/internal/service/seats"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"github.com/stretchr/testify/mock"
)

type MockTripUseCase struct {
	mock.Mock
}

func (m *MockTripUseCase) List(ctx context.Context, filter domain.TripFilter) ([]domain.TripAvailability, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TripAvailability), args.Error(1)
}

func (m *MockTripUseCase) Get(ctx context.Context, id string) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

func (m *MockTripUseCase) Create(ctx context.Context, input trips.CreateTripInput) (*domain.Trip, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

func (m *MockTripUseCase) CreateBatch(ctx context.Context, input trips.CreateTripInput, dates []string) ([]domain.Trip, error) {
	args := m.Called(ctx, input, dates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Trip), args.Error(1)
}

type MockLedgerUseCase struct {
	mock.Mock
}

func (m *MockLedgerUseCase) Hold(ctx context.Context, tripID string, seatIDs []string) (*seats.HoldResult, error) {
	args := m.Called(ctx, tripID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seats.HoldResult), args.Error(1)
}

func (m *MockLedgerUseCase) Release(ctx context.Context, tripID string, seatIDs []string) ([]string, error) {
	args := m.Called(ctx, tripID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLedgerUseCase) ListSeats(ctx context.Context, tripID string) ([]domain.Seat, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockLedgerUseCase) SweepExpired(ctx context.Context) ([]domain.Seat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) Create(ctx context.Context, input booking.CreateBookingInput, requester domain.Requester) (*domain.Booking, error) {
	args := m.Called(ctx, input, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Get(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Cancel(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) UpdatePaymentMethod(ctx context.Context, id string, method domain.PaymentMethod, requester domain.Requester) (*domain.Booking, error) {
	args := m.Called(ctx, id, method, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) List(ctx context.Context, requester domain.Requester) ([]domain.Booking, error) {
	args := m.Called(ctx, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Search(ctx context.Context, query string) ([]domain.Booking, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockAuthUseCase struct {
	mock.Mock
}

func (m *MockAuthUseCase) Register(ctx context.Context, input auth.RegisterInput) (*auth.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

func (m *MockAuthUseCase) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

func (m *MockAuthUseCase) Parse(token string) (domain.Requester, error) {
	args := m.Called(token)
	return args.Get(0).(domain.Requester), args.Error(1)
}

// staticTokens maps fixed tokens to requesters.
type staticTokens map[string]domain.Requester

func (s staticTokens) Parse(token string) (domain.Requester, error) {
	r, ok := s[token]
	if !ok {
		return domain.Requester{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	return r, nil
}

var (
	alice     = domain.Requester{UserID: "u-alice", Email: "alice@example.com", Role: domain.RoleUser}
	adminUser = domain.Requester{UserID: "u-admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	tokens    = staticTokens{"alice-token": alice, "admin-token": adminUser}
)
