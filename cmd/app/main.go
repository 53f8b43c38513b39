package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/busbooking/api"
	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/auth"
	"github.com/Domenick1991/busbooking/internal/bootstrap"
	"github.com/Domenick1991/busbooking/internal/cache"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/service/booking"
	"github.com/Domenick1991/busbooking/internal/service/seats"
	"github.com/Domenick1991/busbooking/internal/service/trips"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New("bus-booking-api", cfg.Log.Level)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg.Database, lg)
	if err != nil {
		lg.Fatal("open storage", zap.Error(err))
	}
	defer storage.Close()
	checks := storage.Checks()

	tripOpts := []trips.TripServiceOption{trips.WithLogger(lg)}
	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.TripsCacheTTL())
		defer redisCache.Close()
		tripOpts = append(tripOpts, trips.WithCache(redisCache))
		checks["redis"] = redisCache
	}
	tripService := trips.NewTripService(storage.Trips, tripOpts...)

	var producer booking.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kp := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer kp.Close()
		producer = kp
		checks["kafka"] = bootstrap.PingFunc(kp.CheckConnection)
	} else {
		lg.Warn("kafka brokers not configured, booking events are not published")
	}

	ledger := seats.NewLedger(tripService, storage.Seats,
		seats.WithHoldTTL(cfg.Booking.HoldTTL()),
		seats.WithLogger(lg),
	)
	bookingService := booking.NewBookingService(
		storage.Bookings,
		tripService,
		producer,
		cfg.Kafka.BookingTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithOrderPrefix(cfg.Booking.OrderPrefix),
		booking.WithLogger(lg),
	)
	authService := auth.NewService(storage.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL(), auth.WithLogger(lg))

	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			lg.Fatal("ensure admin account", zap.Error(err))
		}
	}

	deps := bootstrap.Deps{
		Handlers: api.Handlers{
			Trips:    api.NewTripHandler(tripService, ledger),
			Bookings: api.NewBookingHandler(bookingService),
			Auth:     api.NewAuthHandler(authService),
		},
		Authenticator: authService,
		Checks:        checks,
		Log:           lg,
	}
	if err := bootstrap.Run(ctx, cfg, deps); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
}
