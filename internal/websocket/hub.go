package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
)

// Hub fans hub invocations from the event bus out to the connections
// subscribed to each message's topic.
type Hub struct {
	// Registered clients, indexed by topic.
	topics map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stats      chan chan map[string]int

	bus  event.Bus
	done chan struct{}
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stats:      make(chan chan map[string]int),
		bus:        bus,
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe(event.TypeHubInvocation)
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			for _, topic := range client.topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[*Client]struct{})
				}
				h.topics[topic][client] = struct{}{}
			}
			slog.Debug("hub client registered", "person_id", client.personID, "topics", client.topics)
		case client := <-h.unregister:
			h.remove(client)
		case reply := <-h.stats:
			counts := make(map[string]int, len(h.topics))
			for topic, clients := range h.topics {
				counts[topic] = len(clients)
			}
			reply <- counts
		case e, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			msg, ok := e.Payload.(model.HubMessage)
			if !ok {
				continue
			}
			h.deliver(msg)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Subscribers reports how many connections listen on each topic.
func (h *Hub) Subscribers() map[string]int {
	reply := make(chan map[string]int, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return map[string]int{}
	}
}

func (h *Hub) deliver(msg model.HubMessage) {
	clients := h.topics[msg.Topic]
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(msg.Frame)
	if err != nil {
		slog.Error("failed to marshal hub frame", "target", msg.Frame.Target, "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- payload:
		default:
			slog.Warn("hub client too slow; dropping connection", "person_id", client.personID)
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	removed := false
	for _, topic := range client.topics {
		clients, ok := h.topics[topic]
		if !ok {
			continue
		}
		if _, ok := clients[client]; ok {
			delete(clients, client)
			removed = true
		}
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}

	if removed {
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	seen := make(map[*Client]struct{})
	for _, clients := range h.topics {
		for client := range clients {
			seen[client] = struct{}{}
		}
	}
	for client := range seen {
		h.remove(client)
	}
}
