package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/bootstrap"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/notify"
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

	lg, err := logger.New("bus-booking-worker", cfg.Log.Level)
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

	ledger := seats.NewLedger(trips.NewTripService(storage.Trips), storage.Seats,
		seats.WithHoldTTL(cfg.Booking.HoldTTL()),
		seats.WithLogger(lg),
	)

	var wg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, lg)
		defer consumer.Close()
		sender := notify.NewSender(lg)

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := consumer.Consume(ctx, kafka.BookingEventHandler(lg, sender.Send))
			if err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Warn("kafka notifications not configured, consumer disabled")
	}

	sweepTicker := time.NewTicker(cfg.Worker.HoldSweepInterval())
	defer sweepTicker.Stop()
	lg.Info("worker started", zap.Duration("hold_sweep_interval", cfg.Worker.HoldSweepInterval()))

	for {
		select {
		case <-sweepTicker.C:
			if _, err := ledger.SweepExpired(ctx); err != nil {
				lg.Error("sweep expired holds", zap.Error(err))
			}
		case <-ctx.Done():
			lg.Info("shutting down worker")
			wg.Wait()
			return
		}
	}
}
