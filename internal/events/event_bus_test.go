package events

import (
	"context"
	"testing"
	"time"

	"tournament-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus := NewMemoryEventBus(10)
	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	event := model.NewDomainEvent(model.EventTicketReserved, uuid.New(), "reserved", time.Now().UTC())
	require.NoError(t, bus.Publish(ctx, event))

	select {
	case delivery := <-msgs:
		assert.Equal(t, event.Type, delivery.Data.Type)
		assert.Equal(t, event.AggregateID, delivery.Data.AggregateID)
		delivery.Ack()
	case <-time.After(time.Second):
		t.Fatal("event not delivered in time")
	}
}

func TestMemoryEventBus_NackRequeues(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus := NewMemoryEventBus(10)
	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	event := model.NewDomainEvent(model.EventTicketPaid, uuid.New(), "paid", time.Now().UTC())
	require.NoError(t, bus.Publish(ctx, event))

	first := <-msgs
	first.Nack(true)

	select {
	case second := <-msgs:
		assert.Equal(t, event.AggregateID, second.Data.AggregateID)
		second.Ack()
	case <-time.After(time.Second):
		t.Fatal("nacked event was not redelivered")
	}
}

func TestMemoryEventBus_SubscribeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := NewMemoryEventBus(10)
	msgs, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-msgs:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("delivery channel not closed after cancel")
	}
}
