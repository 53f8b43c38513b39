package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Storage holds the repositories of the configured driver.
type Storage struct {
	Trips    repository.TripRepository
	Seats    repository.SeatRepository
	Bookings repository.BookingRepository
	Users    repository.UserRepository

	// Pool is nil for the memory driver.
	Pool *pgxpool.Pool
}

// OpenStorage connects to postgres (applying migrations when enabled) or
// builds an in-memory store.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Storage, error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		return &Storage{
			Trips:    store.Trips(),
			Seats:    store.Seats(),
			Bookings: store.Bookings(),
			Users:    store.Users(),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("database migrations applied")
	}

	return &Storage{
		Trips:    repository.NewTripRepository(pool),
		Seats:    repository.NewSeatRepository(pool),
		Bookings: repository.NewBookingRepository(pool),
		Users:    repository.NewUserRepository(pool),
		Pool:     pool,
	}, nil
}

// Checks returns the health checks for this storage.
func (s *Storage) Checks() map[string]Pinger {
	if s.Pool == nil {
		return map[string]Pinger{}
	}
	return map[string]Pinger{"postgres": s.Pool}
}

func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
