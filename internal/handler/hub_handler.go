package handler

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"medrunner-portal/internal/websocket"
)

type HubHandler struct {
	hub      *websocket.Hub
	upgrader *gorilla.Upgrader
}

func NewHubHandler(hub *websocket.Hub, origins []string) *HubHandler {
	return &HubHandler{hub: hub, upgrader: websocket.NewUpgrader(origins)}
}

// Emergency accepts a hub connection for the authenticated caller.
func (h *HubHandler) Emergency(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	websocket.Serve(h.hub, h.upgrader, w, r, claims)
}
