package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/config"
	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/notify"
	"medrunner-portal/internal/realtime"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// stubConn is a realtime connection fed by the test.
type stubConn struct {
	frames    chan model.Frame
	lost      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *stubConn) ReadFrame() (model.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.lost:
		return model.Frame{}, err
	case <-c.closed:
		return model.Frame{}, model.ErrConnectionClosed
	}
}

func (c *stubConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *stubConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type stubHub struct {
	mu     sync.Mutex
	conns  []*stubConn
	tokens []string
	fail   error
}

func (h *stubHub) Dial(_ context.Context, accessToken string) (realtime.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fail != nil {
		return nil, h.fail
	}

	conn := &stubConn{
		frames: make(chan model.Frame, 16),
		lost:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	h.conns = append(h.conns, conn)
	h.tokens = append(h.tokens, accessToken)
	return conn, nil
}

func (h *stubHub) failDials(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = err
}

func (h *stubHub) dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *stubHub) latest() *stubConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[len(h.conns)-1]
}

func (h *stubHub) push(t *testing.T, target string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	h.latest().frames <- model.Frame{Type: model.FrameInvocation, Target: target, Arguments: []json.RawMessage{raw}}
}

func testConfig() *config.Config {
	return &config.Config{
		APIURL:            "http://api.test",
		HubPath:           "/hub/emergency",
		ReconnectDelay:    0,
		ReconnectAttempts: 2,
		RequestTimeout:    time.Second,
		StateFile:         "unused",
		Language:          "fr-CA",
		AvailableLocales:  []string{"en-US", "fr-FR", "de-DE"},
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	portal *Portal
	remote *MockRemote
	hub    *stubHub
	local  *localstore.MemoryStore
}

func newFixture(t *testing.T, refreshExpiry time.Time) *fixture {
	t.Helper()

	local := localstore.NewMemoryStore()
	if !refreshExpiry.IsZero() {
		require.NoError(t, localstore.SetTime(local, localstore.KeyRefreshTokenExpiration, refreshExpiry))
	}

	remote := &MockRemote{}
	hub := &stubHub{}
	portal, err := New(testConfig(), Deps{
		Remote:     remote,
		Local:      local,
		Dialer:     hub,
		Permission: notify.PermissionGranted,
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(portal.Close)

	return &fixture{portal: portal, remote: remote, hub: hub, local: local}
}

func validTokens(access string) model.TokenResponse {
	return model.TokenResponse{
		AccessToken:           access,
		AccessTokenExpiresAt:  testNow.Add(15 * time.Minute),
		RefreshTokenExpiresAt: testNow.Add(7 * 24 * time.Hour),
	}
}

// bootSignedIn runs the full boot for an authenticated user.
func (f *fixture) bootSignedIn(t *testing.T, profile model.Person) {
	t.Helper()

	f.remote.On("Exchange", mock.Anything).Return(validTokens("access-1"), nil)
	f.remote.On("FetchUser", mock.Anything).Return(profile, nil).Once()
	f.remote.On("FetchBlockStatus", mock.Anything).Return(model.BlockStatus{}, nil)
	f.remote.On("PublicOrgSettings", mock.Anything).Return(model.PublicOrgSettings{EmergenciesEnabled: true}, nil)

	ctx := context.Background()
	require.True(t, f.portal.InitializeAPI(ctx))
	require.NoError(t, f.portal.InitializeApp(ctx, true))
}
