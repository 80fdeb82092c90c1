package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newTestCoordinator(dialer *fakeDialer, token TokenFunc) *Coordinator {
	return New(dialer, token, event.NewBus(), Options{ReconnectDelay: 0, MaxAttempts: 3})
}

func invocation(target string, arg string) model.Frame {
	return model.Frame{Type: model.FrameInvocation, Target: target, Arguments: []json.RawMessage{json.RawMessage(arg)}}
}

func TestStartFailsFastWithoutToken(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, func(context.Context) (string, error) {
		return "", apierror.Unauthenticated("no session")
	})

	err := coordinator.Start(context.Background())
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))
	assert.Equal(t, model.ConnectionNotStarted, coordinator.State())
	assert.Zero(t, dialer.dialCount())
}

func TestStartDispatchesInDeliveryOrder(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("access-1"))

	var mu sync.Mutex
	var received []string
	require.NoError(t, coordinator.On(model.TargetPersonUpdate, func(args []json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(args[0]))
	}))

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()
	assert.Equal(t, model.ConnectionHealthy, coordinator.State())
	assert.Equal(t, []string{"access-1"}, dialer.tokens)

	conn := dialer.conn(0)
	for _, arg := range []string{`"a"`, `"b"`, `"c"`} {
		conn.frames <- invocation(model.TargetPersonUpdate, arg)
	}
	conn.frames <- invocation("Unhandled", `1`)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{`"a"`, `"b"`, `"c"`}, received)
}

func TestStartIsNoOpWhileRunning(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("t"))

	require.NoError(t, coordinator.Start(context.Background()))
	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	assert.Equal(t, 1, dialer.dialCount())
}

func TestStopIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("t"))

	coordinator.Stop()
	assert.Equal(t, model.ConnectionNotStarted, coordinator.State())

	require.NoError(t, coordinator.Start(context.Background()))
	coordinator.Stop()
	coordinator.Stop()

	assert.Equal(t, model.ConnectionNotStarted, coordinator.State())
	assert.True(t, dialer.conn(0).isClosed())
}

func TestDuplicateHandlerRejected(t *testing.T) {
	coordinator := newTestCoordinator(&fakeDialer{}, staticToken("t"))

	require.NoError(t, coordinator.On(model.TargetOrgSettingsUpdate, func([]json.RawMessage) {}))
	err := coordinator.On(model.TargetOrgSettingsUpdate, func([]json.RawMessage) {})
	assert.ErrorIs(t, err, model.ErrHandlerRegistered)
}

func TestReconnectResumesHealthy(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("t"))

	reconnecting := make(chan error, 1)
	reconnected := make(chan struct{}, 1)
	coordinator.OnReconnecting(func(err error) { reconnecting <- err })
	coordinator.OnReconnected(func() { reconnected <- struct{}{} })

	states, unsubscribe := coordinator.Subscribe()
	defer unsubscribe()

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	dialer.failNext(errNetworkLost)
	dialer.conn(0).failWith <- errNetworkLost

	select {
	case err := <-reconnecting:
		assert.ErrorIs(t, err, errNetworkLost)
	case <-time.After(waitFor):
		t.Fatal("reconnecting callback not called")
	}
	select {
	case <-reconnected:
	case <-time.After(waitFor):
		t.Fatal("reconnected callback not called")
	}

	assert.Equal(t, model.ConnectionHealthy, coordinator.State())
	assert.Equal(t, 3, dialer.dialCount())

	var seen []model.ConnectionState
	for len(seen) < 3 {
		e := <-states
		seen = append(seen, e.Payload.(model.ConnectionState))
	}
	assert.Equal(t, []model.ConnectionState{
		model.ConnectionHealthy,
		model.ConnectionReconnecting,
		model.ConnectionHealthy,
	}, seen)
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("t"))

	closed := make(chan error, 1)
	coordinator.OnClosed(func(err error) { closed <- err })

	require.NoError(t, coordinator.Start(context.Background()))
	dialer.failNext(errNetworkLost, errNetworkLost, errNetworkLost)
	dialer.conn(0).failWith <- errNetworkLost

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, model.ErrReconnectGaveUp)
		assert.ErrorIs(t, err, errNetworkLost)
	case <-time.After(waitFor):
		t.Fatal("closed callback not called")
	}

	assert.Equal(t, model.ConnectionDisconnected, coordinator.State())
	assert.Equal(t, 4, dialer.dialCount())

	// Disconnected is terminal until an explicit restart.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, dialer.dialCount())

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()
	assert.Equal(t, model.ConnectionHealthy, coordinator.State())
}

func TestReconnectStopsOnRejectedToken(t *testing.T) {
	dialer := &fakeDialer{}
	var calls int
	var mu sync.Mutex
	coordinator := newTestCoordinator(dialer, func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 1 {
			return "", apierror.Unauthenticated("refresh rejected")
		}
		return "t", nil
	})

	closed := make(chan error, 1)
	coordinator.OnClosed(func(err error) { closed <- err })

	require.NoError(t, coordinator.Start(context.Background()))
	dialer.conn(0).failWith <- errNetworkLost

	select {
	case err := <-closed:
		assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))
	case <-time.After(waitFor):
		t.Fatal("closed callback not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestReconnectWaitsFixedDelay(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := New(dialer, staticToken("t"), event.NewBus(), Options{ReconnectDelay: 50 * time.Millisecond, MaxAttempts: 2})

	reconnected := make(chan time.Time, 1)
	coordinator.OnReconnected(func() { reconnected <- time.Now() })

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	lost := time.Now()
	dialer.conn(0).failWith <- errNetworkLost

	select {
	case at := <-reconnected:
		assert.GreaterOrEqual(t, at.Sub(lost), 40*time.Millisecond)
	case <-time.After(waitFor):
		t.Fatal("reconnected callback not called")
	}
}

func TestStopDuringReconnectDelay(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := New(dialer, staticToken("t"), event.NewBus(), Options{ReconnectDelay: time.Hour, MaxAttempts: 2})

	reconnecting := make(chan struct{}, 1)
	coordinator.OnReconnecting(func(error) { reconnecting <- struct{}{} })

	require.NoError(t, coordinator.Start(context.Background()))
	dialer.conn(0).failWith <- errNetworkLost
	<-reconnecting

	coordinator.Stop()
	assert.Equal(t, model.ConnectionNotStarted, coordinator.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestRebindOpensFreshConnection(t *testing.T) {
	dialer := &fakeDialer{}
	tokens := []string{"before-link", "after-link"}
	var mu sync.Mutex
	coordinator := newTestCoordinator(dialer, func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		token := tokens[0]
		if len(tokens) > 1 {
			tokens = tokens[1:]
		}
		return token, nil
	})

	reconnected := false
	coordinator.OnReconnected(func() { reconnected = true })

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	require.NoError(t, coordinator.Rebind(context.Background()))

	assert.Equal(t, model.ConnectionHealthy, coordinator.State())
	assert.Equal(t, []string{"before-link", "after-link"}, dialer.tokens)
	assert.True(t, dialer.conn(0).isClosed())
	assert.False(t, dialer.conn(1).isClosed())
	assert.False(t, reconnected)
}

func TestRebindFailureLeavesNotStarted(t *testing.T) {
	dialer := &fakeDialer{}
	coordinator := newTestCoordinator(dialer, staticToken("t"))

	require.NoError(t, coordinator.Start(context.Background()))
	dialer.failNext(errors.New("dial refused"))

	err := coordinator.Rebind(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ConnectionNotStarted, coordinator.State())
}

func TestWatchStopsOnSessionReset(t *testing.T) {
	bus := event.NewBus()
	dialer := &fakeDialer{}
	coordinator := New(dialer, staticToken("t"), bus, Options{})

	stopWatching := coordinator.Watch(bus)
	defer stopWatching()

	require.NoError(t, coordinator.Start(context.Background()))
	bus.Publish(event.New(event.TypeSessionReset, nil))

	assert.Eventually(t, func() bool {
		return coordinator.State() == model.ConnectionNotStarted
	}, waitFor, tick)
	assert.True(t, dialer.conn(0).isClosed())
}

func TestStartReplacesConnectionFromClearedSession(t *testing.T) {
	var epoch atomic.Uint64
	dialer := &fakeDialer{}
	coordinator := New(dialer, staticToken("t"), event.NewBus(), Options{Epoch: epoch.Load})

	require.NoError(t, coordinator.Start(context.Background()))
	epoch.Add(1)
	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	assert.Equal(t, 2, dialer.dialCount())
	assert.True(t, dialer.conn(0).isClosed())
	assert.False(t, dialer.conn(1).isClosed())
	assert.Equal(t, model.ConnectionHealthy, coordinator.State())
}

func TestLateResetLeavesNewerConnectionRunning(t *testing.T) {
	var epoch atomic.Uint64
	bus := event.NewBus()
	dialer := &fakeDialer{}
	coordinator := New(dialer, staticToken("t"), bus, Options{Epoch: epoch.Load})

	stopWatching := coordinator.Watch(bus)
	defer stopWatching()

	// The reset for epoch 1 is delivered after a connection opened under it.
	epoch.Store(1)
	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()
	bus.Publish(event.New(event.TypeSessionReset, model.SessionReset{Epoch: 1}))

	assert.Never(t, func() bool {
		return coordinator.State() != model.ConnectionHealthy
	}, 100*time.Millisecond, tick)
	assert.False(t, dialer.conn(0).isClosed())

	epoch.Store(2)
	bus.Publish(event.New(event.TypeSessionReset, model.SessionReset{Epoch: 2}))
	assert.Eventually(t, func() bool {
		return coordinator.State() == model.ConnectionNotStarted
	}, waitFor, tick)
	assert.True(t, dialer.conn(0).isClosed())
}
