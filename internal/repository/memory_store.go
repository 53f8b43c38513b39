package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/busbooking/internal/domain"
)

// MemoryStore keeps every table in process memory behind one mutex, which
// gives it the same all-or-nothing behaviour as the SQL transactions. It backs
// the "memory" database driver and the scenario tests.
type MemoryStore struct {
	mu           sync.Mutex
	trips        map[string]domain.Trip
	seats        map[string]domain.Seat
	bookings     map[string]domain.Booking
	bookingSeats map[string][]string
	orderIDs     map[string]string
	users        map[string]domain.User
	now          func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for updated_at stamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		trips:        make(map[string]domain.Trip),
		seats:        make(map[string]domain.Seat),
		bookings:     make(map[string]domain.Booking),
		bookingSeats: make(map[string][]string),
		orderIDs:     make(map[string]string),
		users:        make(map[string]domain.User),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Trips() TripRepository       { return memoryTrips{m} }
func (m *MemoryStore) Seats() SeatRepository       { return memorySeats{m} }
func (m *MemoryStore) Bookings() BookingRepository { return memoryBookings{m} }
func (m *MemoryStore) Users() UserRepository       { return memoryUsers{m} }

type memoryTrips struct{ *MemoryStore }
type memorySeats struct{ *MemoryStore }
type memoryBookings struct{ *MemoryStore }
type memoryUsers struct{ *MemoryStore }

func sortSeats(seats []domain.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		a, b := seats[i], seats[j]
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
}

func copySeat(s domain.Seat) domain.Seat {
	if s.HoldUntil != nil {
		t := *s.HoldUntil
		s.HoldUntil = &t
	}
	return s
}

func (r memoryTrips) List(_ context.Context, filter domain.TripFilter, now time.Time) ([]domain.TripAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := make(map[string]int)
	for _, s := range r.seats {
		if s.Holdable(now) {
			available[s.TripID]++
		}
	}

	out := make([]domain.TripAvailability, 0)
	for _, t := range r.trips {
		if filter.From != "" && !strings.EqualFold(t.FromStation, filter.From) {
			continue
		}
		if filter.To != "" && !strings.EqualFold(t.ToStation, filter.To) {
			continue
		}
		if filter.Date != "" && t.Date != filter.Date {
			continue
		}
		out = append(out, domain.TripAvailability{Trip: t, AvailableSeats: available[t.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].DepartureTime < out[j].DepartureTime
	})
	return out, nil
}

func (r memoryTrips) GetByID(_ context.Context, id string) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trips[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "trip", ID: id}
	}
	return &t, nil
}

func (r memoryTrips) Create(_ context.Context, trip *domain.Trip, seats []domain.Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trips[trip.ID]; ok {
		return domain.ConflictError{Msg: "trip already exists"}
	}
	r.trips[trip.ID] = *trip
	for _, s := range seats {
		s.TripID = trip.ID
		r.seats[s.ID] = copySeat(s)
	}
	return nil
}

func (r memorySeats) ListByTrip(_ context.Context, tripID string) ([]domain.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Seat, 0)
	for _, s := range r.seats {
		if s.TripID == tripID {
			out = append(out, copySeat(s))
		}
	}
	sortSeats(out)
	return out, nil
}

func (r memorySeats) ListByIDs(_ context.Context, tripID string, ids []string) ([]domain.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Seat, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		s, ok := r.seats[id]
		if !ok || s.TripID != tripID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, copySeat(s))
	}
	sortSeats(out)
	return out, nil
}

func (r memorySeats) Hold(_ context.Context, tripID string, ids []string, until, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := make([]string, 0, len(ids))
	for _, id := range ids {
		s, ok := r.seats[id]
		if !ok || s.TripID != tripID || !s.Holdable(now) {
			continue
		}
		deadline := until
		s.Status = domain.SeatStatusHolding
		s.HoldUntil = &deadline
		r.seats[id] = s
		held = append(held, id)
	}
	return held, nil
}

func (r memorySeats) Release(_ context.Context, tripID string, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := make([]string, 0, len(ids))
	for _, id := range ids {
		s, ok := r.seats[id]
		if !ok || s.TripID != tripID || s.Status != domain.SeatStatusHolding {
			continue
		}
		s.Status = domain.SeatStatusAvailable
		s.HoldUntil = nil
		r.seats[id] = s
		released = append(released, id)
	}
	return released, nil
}

func (r memorySeats) ReleaseExpired(_ context.Context, now time.Time) ([]domain.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Seat, 0)
	for id, s := range r.seats {
		if !s.HoldExpired(now) {
			continue
		}
		s.Status = domain.SeatStatusAvailable
		s.HoldUntil = nil
		r.seats[id] = s
		out = append(out, s)
	}
	sortSeats(out)
	return out, nil
}

// commit and uncommit expect r.mu to be held.
func (m *MemoryStore) commit(tripID string, ids []string) error {
	err := checkCommittable(ids, func(id string) (domain.SeatStatus, bool) {
		s, ok := m.seats[id]
		if !ok || s.TripID != tripID {
			return "", false
		}
		return s.Status, true
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		s := m.seats[id]
		s.Status = domain.SeatStatusBooked
		s.HoldUntil = nil
		m.seats[id] = s
	}
	return nil
}

func (m *MemoryStore) uncommit(bookingID string) {
	for _, id := range m.bookingSeats[bookingID] {
		s, ok := m.seats[id]
		if !ok || s.Status != domain.SeatStatusBooked {
			continue
		}
		s.Status = domain.SeatStatusAvailable
		s.HoldUntil = nil
		m.seats[id] = s
	}
}

func (m *MemoryStore) loadBooking(id string) (*domain.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	seats := make([]domain.Seat, 0, len(m.bookingSeats[id]))
	for _, sid := range m.bookingSeats[id] {
		if s, ok := m.seats[sid]; ok {
			seats = append(seats, copySeat(s))
		}
	}
	sortSeats(seats)
	attachSeats(&b, seats)
	return &b, nil
}

func (r memoryBookings) Create(_ context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orderIDs[booking.OrderID]; ok {
		return domain.ErrDuplicateOrderID
	}
	if err := r.commit(booking.TripID, booking.SeatIDs); err != nil {
		return err
	}
	stored := *booking
	stored.SeatIDs = append([]string(nil), booking.SeatIDs...)
	stored.Seats = nil
	stored.Trip = nil
	r.bookings[booking.ID] = stored
	r.bookingSeats[booking.ID] = stored.SeatIDs
	r.orderIDs[booking.OrderID] = booking.ID
	return nil
}

func (r memoryBookings) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadBooking(id)
}

func (r memoryBookings) List(_ context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Booking, 0)
	if filter.Empty() {
		return out, nil
	}
	for id, b := range r.bookings {
		if !filter.Match(&b) {
			continue
		}
		loaded, err := r.loadBooking(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.After(out[j].BookedAt) })
	return out, nil
}

func (r memoryBookings) Cancel(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	if b.Status.Terminal() {
		return nil, domain.InvalidTransitionError{From: b.Status, To: domain.BookingStatusCancelled}
	}
	b.Status = domain.BookingStatusCancelled
	b.UpdatedAt = r.now()
	r.bookings[id] = b
	r.uncommit(id)
	return r.loadBooking(id)
}

func (r memoryBookings) UpdatePayment(_ context.Context, id string, method domain.PaymentMethod, confirm bool) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	if b.Status.Terminal() {
		return nil, domain.InvalidTransitionError{From: b.Status, To: domain.BookingStatusConfirmed}
	}
	b.PaymentMethod = method
	if confirm && b.Status == domain.BookingStatusPending {
		b.Status = domain.BookingStatusConfirmed
	}
	b.UpdatedAt = r.now()
	r.bookings[id] = b
	return r.loadBooking(id)
}

func (r memoryBookings) SetStatus(_ context.Context, id string, status domain.BookingStatus) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	switch {
	case status == domain.BookingStatusCancelled && b.Status != domain.BookingStatusCancelled:
		r.uncommit(id)
	case b.Status == domain.BookingStatusCancelled && status != domain.BookingStatusCancelled:
		if seatIDs := r.bookingSeats[id]; len(seatIDs) > 0 {
			if err := r.commit(b.TripID, seatIDs); err != nil {
				return nil, err
			}
		}
	}
	b.Status = status
	b.UpdatedAt = r.now()
	r.bookings[id] = b
	return r.loadBooking(id)
}

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, ok := r.users[key]; ok {
		return domain.ConflictError{Msg: "email already exists"}
	}
	stored := *user
	stored.Email = key
	r.users[key] = stored
	return nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return &u, nil
}

var (
	_ TripRepository    = memoryTrips{}
	_ SeatRepository    = memorySeats{}
	_ BookingRepository = memoryBookings{}
	_ UserRepository    = memoryUsers{}
)
