package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/Domenick1991/busbooking/internal/service/seats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func(string) *domain.Booking); ok {
		return fn(id), args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Cancel(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdatePayment(ctx context.Context, id string, method domain.PaymentMethod, confirm bool) (*domain.Booking, error) {
	args := m.Called(ctx, id, method, confirm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) SetStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockTripGetter struct {
	mock.Mock
}

func (m *MockTripGetter) Get(ctx context.Context, id string) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var (
	owner    = domain.Requester{UserID: "u1", Email: "a@example.com", Role: domain.RoleUser}
	stranger = domain.Requester{UserID: "u2", Email: "x@example.com", Role: domain.RoleUser}
	admin    = domain.Requester{UserID: "root", Role: domain.RoleAdmin}
)

func testTrip() *domain.Trip {
	return &domain.Trip{ID: "trip-1", FromStation: "Ha Noi", ToStation: "Hai Phong", Price: decimal.NewFromInt(100000), BusType: domain.BusTypeSeat}
}

func validCreate() CreateBookingInput {
	return CreateBookingInput{
		TripID:        "trip-1",
		SeatIDs:       []string{"A1", "A2"},
		CustomerName:  "Nguyen Van A",
		CustomerPhone: "0900000000",
		CustomerEmail: "a@example.com",
	}
}

func TestBookingService_Create_Success(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	producer := &MockProducer{}
	service := NewBookingService(repo, trips, producer, "bookings",
		WithNotificationsTopic("notifications"),
		WithOrderIDGenerator(func() string { return "VX1" }))
	ctx := context.Background()

	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	var stored *domain.Booking
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Booking) }).
		Return(nil)
	repo.On("GetByID", ctx, mock.AnythingOfType("string")).Return(func(string) *domain.Booking {
		b := *stored
		return &b
	}, nil)
	producer.On("Publish", ctx, "bookings", mock.Anything, mock.AnythingOfType("kafka.BookingEvent")).Return(nil)
	producer.On("Publish", ctx, "notifications", mock.Anything, mock.AnythingOfType("kafka.BookingEvent")).Return(nil)

	booking, err := service.Create(ctx, validCreate(), owner)

	require.NoError(t, err)
	assert.Equal(t, "VX1", booking.OrderID)
	assert.Equal(t, "u1", booking.UserID)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.Equal(t, domain.PaymentMethodCash, booking.PaymentMethod)
	assert.True(t, decimal.NewFromInt(200000).Equal(booking.TotalPrice))
	assert.Equal(t, "trip-1", booking.Trip.ID)

	event := producer.Calls[0].Arguments.Get(3).(kafka.BookingEvent)
	assert.Equal(t, kafka.EventBookingCreated, event.Type)
	assert.Equal(t, "200000", event.TotalPrice)
	producer.AssertNumberOfCalls(t, "Publish", 2)
}

func TestBookingService_Create_PublishFailureDoesNotFail(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	producer := &MockProducer{}
	service := NewBookingService(repo, trips, producer, "bookings")
	ctx := context.Background()

	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("GetByID", ctx, mock.Anything).Return(&domain.Booking{ID: "b1", TripID: "trip-1"}, nil)
	producer.On("Publish", ctx, "bookings", "b1", mock.Anything).Return(errors.New("kafka unavailable"))

	_, err := service.Create(ctx, validCreate(), domain.Requester{})

	assert.NoError(t, err)
	producer.AssertExpectations(t)
}

func TestBookingService_Create_Validation(t *testing.T) {
	cases := map[string]func(*CreateBookingInput){
		"no name":        func(in *CreateBookingInput) { in.CustomerName = "  " },
		"no phone":       func(in *CreateBookingInput) { in.CustomerPhone = "" },
		"bad email":      func(in *CreateBookingInput) { in.CustomerEmail = "not-an-email" },
		"no seats":       func(in *CreateBookingInput) { in.SeatIDs = nil },
		"bad payment":    func(in *CreateBookingInput) { in.PaymentMethod = "bitcoin" },
		"missing tripID": func(in *CreateBookingInput) { in.TripID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &MockBookingRepository{}
			service := NewBookingService(repo, &MockTripGetter{}, nil, "")
			in := validCreate()
			mutate(&in)

			_, err := service.Create(context.Background(), in, owner)

			assert.True(t, domain.IsValidation(err))
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_Create_DuplicateSeats(t *testing.T) {
	service := NewBookingService(&MockBookingRepository{}, &MockTripGetter{}, nil, "")
	in := validCreate()
	in.SeatIDs = []string{"A1", "A2", "A1"}

	_, err := service.Create(context.Background(), in, owner)

	var sel domain.InvalidSeatSelectionError
	require.ErrorAs(t, err, &sel)
	assert.Equal(t, domain.SeatsDuplicated, sel.Reason)
	assert.Equal(t, []string{"A1"}, sel.SeatIDs)
}

func TestBookingService_Create_TripNotFound(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()

	trips.On("Get", ctx, "trip-1").Return(nil, domain.NotFoundError{Resource: "trip", ID: "trip-1"})

	_, err := service.Create(ctx, validCreate(), owner)

	assert.True(t, domain.IsNotFound(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_Create_RetriesOrderIDOnce(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	ids := []string{"VX1", "VX2"}
	n := 0
	service := NewBookingService(repo, trips, nil, "", WithOrderIDGenerator(func() string {
		id := ids[n]
		n++
		return id
	}))
	ctx := context.Background()

	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	var orderIDs []string
	repo.On("Create", ctx, mock.Anything).
		Run(func(args mock.Arguments) { orderIDs = append(orderIDs, args.Get(1).(*domain.Booking).OrderID) }).
		Return(domain.ErrDuplicateOrderID).Once()
	repo.On("Create", ctx, mock.Anything).
		Run(func(args mock.Arguments) { orderIDs = append(orderIDs, args.Get(1).(*domain.Booking).OrderID) }).
		Return(nil).Once()
	repo.On("GetByID", ctx, mock.Anything).Return(&domain.Booking{ID: "b1", OrderID: "VX2"}, nil)

	booking, err := service.Create(ctx, validCreate(), owner)

	require.NoError(t, err)
	assert.Equal(t, "VX2", booking.OrderID)
	assert.Equal(t, []string{"VX1", "VX2"}, orderIDs)
}

func TestBookingService_Create_SecondCollisionIsInternal(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "", WithOrderIDGenerator(func() string { return "VX1" }))
	ctx := context.Background()

	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	repo.On("Create", ctx, mock.Anything).Return(domain.ErrDuplicateOrderID).Twice()

	_, err := service.Create(ctx, validCreate(), owner)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	assert.False(t, domain.IsValidation(err) || domain.IsInvalidSeatSelection(err) || domain.IsConflict(err))
	repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestOrderIDGenerator_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	gen := OrderIDGenerator("VX", func() time.Time { return now })

	assert.Regexp(t, regexp.MustCompile(`^VX1700000000123\d{3}$`), gen())
}

func TestBookingService_Get_Ownership(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()
	stored := &domain.Booking{ID: "b1", TripID: "trip-1", UserID: "u1", CustomerEmail: "a@example.com"}

	repo.On("GetByID", ctx, "b1").Return(stored, nil)
	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)

	_, err := service.Get(ctx, "b1", owner)
	assert.NoError(t, err)

	_, err = service.Get(ctx, "b1", domain.Requester{Email: "A@EXAMPLE.COM"})
	assert.NoError(t, err)

	_, err = service.Get(ctx, "b1", admin)
	assert.NoError(t, err)

	_, err = service.Get(ctx, "b1", stranger)
	assert.True(t, domain.IsForbidden(err))

	_, err = service.Get(ctx, "b1", domain.Requester{})
	assert.True(t, domain.IsForbidden(err))
}

func TestBookingService_Cancel_ForbiddenDoesNotTouchRepository(t *testing.T) {
	repo := &MockBookingRepository{}
	service := NewBookingService(repo, &MockTripGetter{}, nil, "")
	ctx := context.Background()

	repo.On("GetByID", ctx, "b1").Return(&domain.Booking{ID: "b1", UserID: "u1"}, nil)

	_, err := service.Cancel(ctx, "b1", stranger)

	assert.True(t, domain.IsForbidden(err))
	repo.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestBookingService_UpdatePaymentMethod(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	producer := &MockProducer{}
	service := NewBookingService(repo, trips, producer, "bookings")
	ctx := context.Background()

	repo.On("GetByID", ctx, "b1").Return(&domain.Booking{ID: "b1", TripID: "trip-1", UserID: "u1", Status: domain.BookingStatusPending}, nil)
	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	repo.On("UpdatePayment", ctx, "b1", domain.PaymentMethodMomo, true).
		Return(&domain.Booking{ID: "b1", TripID: "trip-1", UserID: "u1", Status: domain.BookingStatusConfirmed, PaymentMethod: domain.PaymentMethodMomo}, nil)
	producer.On("Publish", ctx, "bookings", "b1", mock.Anything).Return(nil)

	booking, err := service.UpdatePaymentMethod(ctx, "b1", domain.PaymentMethodMomo, owner)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
	event := producer.Calls[0].Arguments.Get(3).(kafka.BookingEvent)
	assert.Equal(t, kafka.EventBookingConfirmed, event.Type)

	_, err = service.UpdatePaymentMethod(ctx, "b1", "cheque", owner)
	assert.True(t, domain.IsValidation(err))
}

func TestBookingService_UpdatePaymentMethod_CashKeepsPending(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()

	repo.On("GetByID", ctx, "b1").Return(&domain.Booking{ID: "b1", TripID: "trip-1", UserID: "u1", Status: domain.BookingStatusPending}, nil)
	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)
	repo.On("UpdatePayment", ctx, "b1", domain.PaymentMethodCash, false).
		Return(&domain.Booking{ID: "b1", TripID: "trip-1", Status: domain.BookingStatusPending}, nil)

	booking, err := service.UpdatePaymentMethod(ctx, "b1", domain.PaymentMethodCash, owner)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	repo.AssertExpectations(t)
}

func TestBookingService_UpdateStatus(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()

	repo.On("SetStatus", ctx, "b1", domain.BookingStatusCompleted).
		Return(&domain.Booking{ID: "b1", TripID: "trip-1", Status: domain.BookingStatusCompleted}, nil)
	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)

	booking, err := service.UpdateStatus(ctx, "b1", domain.BookingStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, booking.Status)

	_, err = service.UpdateStatus(ctx, "b1", "archived")
	assert.True(t, domain.IsValidation(err))
}

func TestBookingService_List_UsesVisibleFilter(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()

	repo.On("List", ctx, domain.BookingFilter{All: true}).Return([]domain.Booking{{ID: "b1", TripID: "trip-1"}}, nil)
	repo.On("List", ctx, domain.BookingFilter{UserID: "u1", Email: "a@example.com"}).Return([]domain.Booking{}, nil)
	trips.On("Get", ctx, "trip-1").Return(testTrip(), nil)

	all, err := service.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].Trip)

	mine, err := service.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, mine)
	repo.AssertExpectations(t)
}

func TestBookingService_Search(t *testing.T) {
	repo := &MockBookingRepository{}
	trips := &MockTripGetter{}
	service := NewBookingService(repo, trips, nil, "")
	ctx := context.Background()

	repo.On("List", ctx, domain.BookingFilter{Query: "VX1"}).Return([]domain.Booking{{ID: "b1", TripID: "trip-1"}}, nil)
	trips.On("Get", ctx, "trip-1").Return(nil, errors.New("cache down"))

	found, err := service.Search(ctx, " VX1 ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Nil(t, found[0].Trip)

	_, err = service.Search(ctx, "")
	assert.True(t, domain.IsValidation(err))
}

type storeTrips struct{ repo repository.TripRepository }

func (s storeTrips) Get(ctx context.Context, id string) (*domain.Trip, error) {
	return s.repo.GetByID(ctx, id)
}

func newScenario(t *testing.T) (*BookingService, *seats.Ledger, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Trips().Create(context.Background(), testTrip(), []domain.Seat{
		{ID: "A1", Number: "A1", Floor: 1, Status: domain.SeatStatusAvailable},
		{ID: "A2", Number: "A2", Floor: 1, Status: domain.SeatStatusAvailable},
		{ID: "A3", Number: "A3", Floor: 1, Status: domain.SeatStatusAvailable},
	}))
	trips := storeTrips{store.Trips()}
	var seq atomic.Int64
	orderIDs := WithOrderIDGenerator(func() string { return fmt.Sprintf("VX%d", seq.Add(1)) })
	return NewBookingService(store.Bookings(), trips, nil, "", orderIDs), seats.NewLedger(trips, store.Seats()), store
}

func seatStatuses(t *testing.T, store *repository.MemoryStore, ids ...string) []domain.SeatStatus {
	t.Helper()
	list, err := store.Seats().ListByIDs(context.Background(), "trip-1", ids)
	require.NoError(t, err)
	out := make([]domain.SeatStatus, 0, len(list))
	for _, s := range list {
		out = append(out, s.Status)
	}
	return out
}

func TestScenario_HoldBookCancel(t *testing.T) {
	service, ledger, store := newScenario(t)
	ctx := context.Background()

	held, err := ledger.Hold(ctx, "trip-1", []string{"A1", "A2"})
	require.NoError(t, err)
	require.True(t, held.Complete())
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusHolding, domain.SeatStatusHolding}, seatStatuses(t, store, "A1", "A2"))

	booking, err := service.Create(ctx, validCreate(), owner)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.True(t, decimal.NewFromInt(200000).Equal(booking.TotalPrice))
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusBooked, domain.SeatStatusBooked}, seatStatuses(t, store, "A1", "A2"))

	cancelled, err := service.Cancel(ctx, booking.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusAvailable, domain.SeatStatusAvailable}, seatStatuses(t, store, "A1", "A2"))

	_, err = service.Cancel(ctx, booking.ID, owner)
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestScenario_BookedSeatCannotBeBookedAgain(t *testing.T) {
	service, _, store := newScenario(t)
	ctx := context.Background()

	_, err := service.Create(ctx, validCreate(), owner)
	require.NoError(t, err)

	in := validCreate()
	in.SeatIDs = []string{"A2", "A3"}
	_, err = service.Create(ctx, in, stranger)

	var sel domain.InvalidSeatSelectionError
	require.ErrorAs(t, err, &sel)
	assert.Equal(t, domain.SeatsUnavailable, sel.Reason)
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusAvailable}, seatStatuses(t, store, "A3"))
}

func TestScenario_SeatFromAnotherTrip(t *testing.T) {
	service, _, _ := newScenario(t)
	in := validCreate()
	in.SeatIDs = []string{"A1", "Z9"}

	_, err := service.Create(context.Background(), in, owner)

	var sel domain.InvalidSeatSelectionError
	require.ErrorAs(t, err, &sel)
	assert.Equal(t, domain.SeatsNotFound, sel.Reason)
}

func TestScenario_ConcurrentCreateOneWinner(t *testing.T) {
	service, _, store := newScenario(t)
	ctx := context.Background()

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Create(ctx, validCreate(), domain.Requester{})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, domain.IsInvalidSeatSelection(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	all, err := store.Bookings().List(ctx, domain.BookingFilter{All: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScenario_AdminRevivesCancelledBooking(t *testing.T) {
	service, _, store := newScenario(t)
	ctx := context.Background()

	booking, err := service.Create(ctx, validCreate(), owner)
	require.NoError(t, err)
	_, err = service.UpdateStatus(ctx, booking.ID, domain.BookingStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusAvailable, domain.SeatStatusAvailable}, seatStatuses(t, store, "A1", "A2"))

	revived, err := service.UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, revived.Status)
	assert.Equal(t, []domain.SeatStatus{domain.SeatStatusBooked, domain.SeatStatusBooked}, seatStatuses(t, store, "A1", "A2"))

	_, err = service.UpdatePaymentMethod(ctx, booking.ID, domain.PaymentMethodCard, owner)
	require.NoError(t, err)
	_, err = service.UpdateStatus(ctx, booking.ID, domain.BookingStatusCompleted)
	require.NoError(t, err)
	_, err = service.UpdatePaymentMethod(ctx, booking.ID, domain.PaymentMethodBank, owner)
	assert.True(t, domain.IsInvalidTransition(err))
}
