package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingEventHandler_Decodes(t *testing.T) {
	var got BookingEvent
	handler := BookingEventHandler(nil, func(_ context.Context, e BookingEvent) error {
		got = e
		return nil
	})
	payload, err := json.Marshal(BookingEvent{Type: EventBookingCreated, OrderID: "VX1", SeatIDs: []string{"s1"}})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), kafka.Message{Value: payload}))

	assert.Equal(t, EventBookingCreated, got.Type)
	assert.Equal(t, "VX1", got.OrderID)
	assert.Equal(t, []string{"s1"}, got.SeatIDs)
}

func TestBookingEventHandler_SkipsGarbage(t *testing.T) {
	called := false
	handler := BookingEventHandler(nil, func(context.Context, BookingEvent) error {
		called = true
		return nil
	})

	assert.NoError(t, handler(context.Background(), kafka.Message{Value: []byte("{not json")}))
	assert.False(t, called)
}

func TestBookingEventHandler_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	handler := BookingEventHandler(nil, func(context.Context, BookingEvent) error { return boom })

	err := handler(context.Background(), kafka.Message{Value: []byte(`{"type":"booking_cancelled"}`)})

	assert.ErrorIs(t, err, boom)
}
