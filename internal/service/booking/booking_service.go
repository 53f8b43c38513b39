package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/mail"
	"strings"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/metrics"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	Create(ctx context.Context, input CreateBookingInput, requester domain.Requester) (*domain.Booking, error)
	Get(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error)
	Cancel(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error)
	UpdatePaymentMethod(ctx context.Context, id string, method domain.PaymentMethod, requester domain.Requester) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error)
	List(ctx context.Context, requester domain.Requester) ([]domain.Booking, error)
	Search(ctx context.Context, query string) ([]domain.Booking, error)
}

// TripGetter resolves a trip, usually through the trip cache.
type TripGetter interface {
	Get(ctx context.Context, id string) (*domain.Trip, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateBookingInput struct {
	TripID        string               `json:"trip_id"`
	SeatIDs       []string             `json:"seat_ids"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	CustomerEmail string               `json:"customer_email"`
	PickupPoint   string               `json:"pickup_point"`
	DropoffPoint  string               `json:"dropoff_point"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

const DefaultOrderPrefix = "VX"

type BookingService struct {
	bookings           repository.BookingRepository
	trips              TripGetter
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	orderID            func() string
	now                func() time.Time
	log                *zap.Logger
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithOrderPrefix sets the prefix of generated order ids.
func WithOrderPrefix(prefix string) BookingServiceOption {
	return func(s *BookingService) {
		s.orderID = OrderIDGenerator(prefix, func() time.Time { return s.now() })
	}
}

func WithOrderIDGenerator(gen func() string) BookingServiceOption {
	return func(s *BookingService) {
		s.orderID = gen
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = logger.OrNop(log)
	}
}

// NewBookingService builds the booking aggregate. producer may be nil, in
// which case no events are published.
func NewBookingService(
	bookings repository.BookingRepository,
	trips TripGetter,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		trips:        trips,
		producer:     producer,
		bookingTopic: bookingTopic,
		now:          time.Now,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.orderID == nil {
		service.orderID = OrderIDGenerator(DefaultOrderPrefix, func() time.Time { return service.now() })
	}
	return service
}

// OrderIDGenerator returns ids of the form <prefix><unix millis><3 digits>.
func OrderIDGenerator(prefix string, now func() time.Time) func() string {
	return func() string {
		return fmt.Sprintf("%s%d%03d", prefix, now().UnixMilli(), rand.IntN(1000))
	}
}

func (s *BookingService) Create(ctx context.Context, input CreateBookingInput, requester domain.Requester) (*domain.Booking, error) {
	if err := validateCreate(&input); err != nil {
		metrics.BookingCreated("rejected")
		return nil, err
	}

	trip, err := s.trips.Get(ctx, input.TripID)
	if err != nil {
		metrics.BookingCreated("rejected")
		return nil, err
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:            uuid.NewString(),
		TripID:        trip.ID,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		UserID:        requester.UserID,
		PickupPoint:   input.PickupPoint,
		DropoffPoint:  input.DropoffPoint,
		TotalPrice:    trip.Price.Mul(decimal.NewFromInt(int64(len(input.SeatIDs)))),
		PaymentMethod: input.PaymentMethod,
		Status:        domain.BookingStatusPending,
		SeatIDs:       input.SeatIDs,
		BookedAt:      now,
		UpdatedAt:     now,
	}

	if err := s.insert(ctx, booking); err != nil {
		if domain.IsInvalidSeatSelection(err) {
			metrics.BookingCreated("rejected")
			s.log.Info("booking rejected", zap.String("trip_id", trip.ID), zap.Error(err))
		} else {
			metrics.BookingCreated("error")
			s.log.Error("booking create failed", zap.String("trip_id", trip.ID), zap.Error(err))
		}
		return nil, err
	}
	metrics.BookingCreated("created")

	created, err := s.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	created.Trip = trip
	s.log.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.String("order_id", created.OrderID),
		zap.String("trip_id", trip.ID),
		zap.Strings("seat_ids", created.SeatIDs),
		zap.String("total_price", created.TotalPrice.String()))
	s.publish(ctx, kafka.EventBookingCreated, created)
	return created, nil
}

// insert writes the booking, regenerating the order id once on a collision.
func (s *BookingService) insert(ctx context.Context, booking *domain.Booking) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		booking.OrderID = s.orderID()
		err = s.bookings.Create(ctx, booking)
		if !errors.Is(err, domain.ErrDuplicateOrderID) {
			return err
		}
		s.log.Warn("order id collision", zap.String("order_id", booking.OrderID), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("allocate order id: %w", err)
}

func validateCreate(input *CreateBookingInput) error {
	input.TripID = strings.TrimSpace(input.TripID)
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	input.PickupPoint = strings.TrimSpace(input.PickupPoint)
	input.DropoffPoint = strings.TrimSpace(input.DropoffPoint)

	if input.TripID == "" {
		return domain.ValidationError{Field: "trip_id", Msg: "is required"}
	}
	if input.CustomerName == "" {
		return domain.ValidationError{Field: "customer_name", Msg: "is required"}
	}
	if input.CustomerPhone == "" {
		return domain.ValidationError{Field: "customer_phone", Msg: "is required"}
	}
	if input.CustomerEmail != "" {
		if _, err := mail.ParseAddress(input.CustomerEmail); err != nil {
			return domain.ValidationError{Field: "customer_email", Msg: "is not a valid email"}
		}
	}
	if len(input.SeatIDs) == 0 {
		return domain.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	}
	seen := make(map[string]bool, len(input.SeatIDs))
	var dups []string
	for _, id := range input.SeatIDs {
		if id == "" {
			return domain.ValidationError{Field: "seats", Msg: "seat id must not be empty"}
		}
		if seen[id] {
			dups = append(dups, id)
		}
		seen[id] = true
	}
	if len(dups) > 0 {
		return domain.InvalidSeatSelectionError{Reason: domain.SeatsDuplicated, SeatIDs: dups}
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = domain.PaymentMethodCash
	}
	if _, ok := domain.ParsePaymentMethod(string(input.PaymentMethod)); !ok {
		return domain.ValidationError{Field: "payment_method", Msg: "unknown payment method"}
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccess(requester, booking) {
		if requester.Anonymous() {
			return nil, domain.ForbiddenError{Msg: "you must be logged in to view this booking"}
		}
		return nil, domain.ForbiddenError{Msg: "you do not have permission to view this booking"}
	}
	s.attachTrip(ctx, booking)
	return booking, nil
}

func (s *BookingService) Cancel(ctx context.Context, id string, requester domain.Requester) (*domain.Booking, error) {
	if _, err := s.Get(ctx, id, requester); err != nil {
		return nil, err
	}

	cancelled, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransition(string(domain.BookingStatusCancelled))
	metrics.SeatsReleased("booking", len(cancelled.SeatIDs))
	s.log.Info("booking cancelled", zap.String("booking_id", id), zap.Strings("seat_ids", cancelled.SeatIDs))
	s.publish(ctx, kafka.EventBookingCancelled, cancelled)
	s.attachTrip(ctx, cancelled)
	return cancelled, nil
}

// UpdatePaymentMethod records the chosen method; any prepaid method confirms
// a pending booking.
func (s *BookingService) UpdatePaymentMethod(ctx context.Context, id string, method domain.PaymentMethod, requester domain.Requester) (*domain.Booking, error) {
	if _, ok := domain.ParsePaymentMethod(string(method)); !ok {
		return nil, domain.ValidationError{Field: "payment_method", Msg: "unknown payment method"}
	}
	current, err := s.Get(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	updated, err := s.bookings.UpdatePayment(ctx, id, method, method.Prepaid())
	if err != nil {
		return nil, err
	}
	event := kafka.EventBookingStatusChanged
	if current.Status != updated.Status {
		metrics.BookingTransition(string(updated.Status))
		if updated.Status == domain.BookingStatusConfirmed {
			event = kafka.EventBookingConfirmed
		}
	}
	s.log.Info("payment method updated",
		zap.String("booking_id", id),
		zap.String("payment_method", string(method)),
		zap.String("status", string(updated.Status)))
	s.publish(ctx, event, updated)
	s.attachTrip(ctx, updated)
	return updated, nil
}

// UpdateStatus is the admin override. It accepts any target status and keeps
// the seats consistent with it.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	if _, ok := domain.ParseBookingStatus(string(status)); !ok {
		return nil, domain.ValidationError{Field: "status", Msg: "unknown booking status"}
	}

	updated, err := s.bookings.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransition(string(status))

	event := kafka.EventBookingStatusChanged
	switch status {
	case domain.BookingStatusCancelled:
		event = kafka.EventBookingCancelled
	case domain.BookingStatusConfirmed:
		event = kafka.EventBookingConfirmed
	}
	s.log.Info("booking status set", zap.String("booking_id", id), zap.String("status", string(status)))
	s.publish(ctx, event, updated)
	s.attachTrip(ctx, updated)
	return updated, nil
}

func (s *BookingService) List(ctx context.Context, requester domain.Requester) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, domain.VisibleFilter(requester))
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		s.attachTrip(ctx, &bookings[i])
	}
	return bookings, nil
}

// Search finds bookings by order id, phone or email for callers without an account.
func (s *BookingService) Search(ctx context.Context, query string) ([]domain.Booking, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ValidationError{Field: "query", Msg: "is required"}
	}
	bookings, err := s.bookings.List(ctx, domain.BookingFilter{Query: query})
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		s.attachTrip(ctx, &bookings[i])
	}
	return bookings, nil
}

func (s *BookingService) attachTrip(ctx context.Context, booking *domain.Booking) {
	if booking.Trip != nil {
		return
	}
	trip, err := s.trips.Get(ctx, booking.TripID)
	if err != nil {
		s.log.Warn("load booking trip", zap.String("booking_id", booking.ID), zap.Error(err))
		return
	}
	booking.Trip = trip
}

// publish never fails the caller; the booking is already stored.
func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		OrderID:    booking.OrderID,
		TripID:     booking.TripID,
		SeatIDs:    booking.SeatIDs,
		Name:       booking.CustomerName,
		Email:      booking.CustomerEmail,
		Phone:      booking.CustomerPhone,
		Status:     string(booking.Status),
		TotalPrice: booking.TotalPrice.String(),
		OccurredAt: s.now().UTC(),
	}
	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" && s.notificationsTopic != s.bookingTopic {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, booking.ID, event); err != nil {
			s.log.Warn("publish booking event",
				zap.String("type", eventType),
				zap.String("topic", topic),
				zap.String("booking_id", booking.ID),
				zap.Error(err))
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
