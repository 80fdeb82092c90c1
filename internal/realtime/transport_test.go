package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

func newHubServer(t *testing.T, frames ...model.Frame) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for _, frame := range frames {
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		}
		_, _, _ = ws.ReadMessage()
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketDialerReadsFrames(t *testing.T) {
	server := newHubServer(t,
		model.Frame{Type: model.FramePing},
		invocation(model.TargetPersonUpdate, `{"id":"p1"}`),
	)

	conn, err := NewWebsocketDialer(wsURL(server)).Dial(context.Background(), "good-token")
	require.NoError(t, err)
	defer conn.Close()

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, model.FramePing, frame.Type)

	frame, err = conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, model.TargetPersonUpdate, frame.Target)
	require.Len(t, frame.Arguments, 1)
	assert.JSONEq(t, `{"id":"p1"}`, string(frame.Arguments[0]))
}

func TestWebsocketDialerRejectedHandshake(t *testing.T) {
	server := newHubServer(t)

	_, err := NewWebsocketDialer(wsURL(server)).Dial(context.Background(), "stale-token")
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))
	assert.Equal(t, http.StatusUnauthorized, apierror.StatusOf(err))
}

func TestWebsocketDialerUnreachable(t *testing.T) {
	_, err := NewWebsocketDialer("ws://127.0.0.1:1/hub").Dial(context.Background(), "good-token")
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindTransient))
}

func TestCoordinatorOverWebsocket(t *testing.T) {
	server := newHubServer(t, invocation(model.TargetOrgSettingsUpdate, `{"public":{"emergenciesEnabled":true}}`))

	coordinator := New(NewWebsocketDialer(wsURL(server)), staticToken("good-token"), nil, Options{})
	received := make(chan string, 1)
	require.NoError(t, coordinator.On(model.TargetOrgSettingsUpdate, func(args []json.RawMessage) {
		received <- string(args[0])
	}))

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"public":{"emergenciesEnabled":true}}`, payload)
	case <-time.After(waitFor):
		t.Fatal("org settings update not delivered")
	}
}
