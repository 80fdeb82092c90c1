package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		bus.Publish(New(TypeSessionChanged, i))
	}

	for i := 0; i < 5; i++ {
		e := <-events
		assert.Equal(t, i, e.Payload)
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.Timestamp)
	}
}

func TestBusFiltersByType(t *testing.T) {
	bus := NewBus()
	resets, unsubscribe := bus.Subscribe(TypeSessionReset)
	defer unsubscribe()

	bus.Publish(New(TypeSessionChanged, nil))
	bus.Publish(New(TypeSessionReset, "reset"))

	e := <-resets
	assert.Equal(t, TypeSessionReset, e.Type)
	assert.Len(t, resets, 0)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	events, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-events
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(New(TypeSessionChanged, nil))
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeStatusChanged, i))
	}

	assert.Len(t, events, subscriberBuffer)
}
