package notify

import (
	"context"

	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/logger"
	"go.uber.org/zap"
)

// Sender delivers customer notifications for booking events. Delivery is a
// structured log line; a mail or SMS gateway would plug in here.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: logger.OrNop(log)}
}

func (s *Sender) Send(_ context.Context, event kafka.BookingEvent) error {
	subject, ok := subjects[event.Type]
	if !ok {
		s.log.Debug("no notification for event", zap.String("type", event.Type))
		return nil
	}
	channel, recipient := "sms", event.Phone
	if event.Email != "" {
		channel, recipient = "email", event.Email
	}
	s.log.Info("notification sent",
		zap.String("channel", channel),
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("order_id", event.OrderID),
		zap.String("status", event.Status),
		zap.Int("seats", len(event.SeatIDs)))
	return nil
}

var subjects = map[string]string{
	kafka.EventBookingCreated:       "Booking received",
	kafka.EventBookingConfirmed:     "Booking confirmed",
	kafka.EventBookingCancelled:     "Booking cancelled",
	kafka.EventBookingStatusChanged: "Booking updated",
}
