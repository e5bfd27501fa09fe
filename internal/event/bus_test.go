package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDelivers(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(New(TypeSessionAuthenticated, "payload", ""))

	got := <-ch
	assert.Equal(t, TypeSessionAuthenticated, got.Type)
	assert.Equal(t, "payload", got.Payload)
	assert.NotEmpty(t, got.ID)
	assert.NotEmpty(t, got.Timestamp)
}

func TestBusDropsForFullSubscriber(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeSessionLoading, i, ""))
	}

	assert.Len(t, ch, subscriberBuffer)
	first := <-ch
	assert.Equal(t, 0, first.Payload)
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	ch, unsubscribe := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(New(TypeSessionFailed, nil, "Session expired. Please login again."))
}
