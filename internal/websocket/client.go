package websocket

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"medrunner-portal/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one accepted hub connection. Its topics are fixed when it is
// accepted; a client whose linkage changes must reconnect to pick up new
// subscriptions.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	personID string
	topics   []string
}

// TopicsFor returns the subscriptions granted to a connection carrying
// claims.
func TopicsFor(claims *model.AuthClaims) []string {
	topics := []string{model.TopicBroadcast, model.TopicPerson(claims.PersonID)}
	if claims.Linked {
		topics = append(topics, model.TopicEmergencies(claims.PersonID))
	}
	return topics
}

// NewUpgrader accepts browser origins from the configured list; "*" accepts
// any origin.
func NewUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 {
				return true
			}
			return slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// Serve upgrades the request and registers the connection with the hub.
func Serve(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, claims *model.AuthClaims) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("hub upgrade failed", "person_id", claims.PersonID, "error", err)
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		personID: claims.PersonID,
		topics:   TopicsFor(claims),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub stopped"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	slog.Info("hub connection accepted", "person_id", client.personID, "linked", claims.Linked)

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; the portal never sends
// invocations upstream.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("hub connection read failed", "person_id", c.personID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
