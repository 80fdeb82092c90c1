package instance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medrunner-portal/internal/event"
)

func TestSoleInstanceIsFirst(t *testing.T) {
	probe := NewProbe(event.NewBus())
	probe.Start()
	defer probe.Close()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, probe.IsFirst())
}

func TestLaterInstanceLearnsItIsNotFirst(t *testing.T) {
	bus := event.NewBus()

	first := NewProbe(bus)
	first.Start()
	defer first.Close()

	second := NewProbe(bus)
	second.Start()
	defer second.Close()

	assert.Eventually(t, func() bool { return !second.IsFirst() }, time.Second, 5*time.Millisecond)
	assert.True(t, first.IsFirst())
}

func TestClosedInstanceStopsAnswering(t *testing.T) {
	bus := event.NewBus()

	first := NewProbe(bus)
	first.Start()
	first.Close()
	first.Close()

	second := NewProbe(bus)
	second.Start()
	defer second.Close()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, second.IsFirst())
}
