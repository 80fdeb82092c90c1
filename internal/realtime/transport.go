package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// Conn is one open realtime connection.
type Conn interface {
	ReadFrame() (model.Frame, error)
	Close() error
}

// Dialer opens a connection authenticated by an access token.
type Dialer interface {
	Dial(ctx context.Context, accessToken string) (Conn, error)
}

const closeWriteWait = time.Second

type WebsocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewWebsocketDialer(url string) *WebsocketDialer {
	return &WebsocketDialer{
		URL: url,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, accessToken string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	ws, resp, err := d.Dialer.DialContext(ctx, d.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, apierror.FromCredentialStatus(resp.StatusCode, "HANDSHAKE_FAILED", err.Error())
		}
		return nil, apierror.Transient("NETWORK_ERROR", err.Error(), 0)
	}

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) ReadFrame() (model.Frame, error) {
	var frame model.Frame
	if err := c.ws.ReadJSON(&frame); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return model.Frame{}, fmt.Errorf("%w: %s", model.ErrConnectionClosed, closeErr.Text)
		}
		return model.Frame{}, err
	}
	return frame, nil
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	return c.ws.Close()
}
