package app

import (
	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
)

type AlertColor string

const (
	AlertRed   AlertColor = "red"
	AlertGreen AlertColor = "green"
)

type Alert struct {
	Color     AlertColor `json:"color"`
	Message   string     `json:"message"`
	Closeable bool       `json:"closeable"`
}

// Status holds the UI facing flags of the portal.
type Status struct {
	APIInitialized         bool                  `json:"apiInitialized"`
	InitError              string                `json:"initError,omitempty"`
	ShowNewUpdateBanner    bool                  `json:"showNewUpdateBanner"`
	ShowNotificationPrompt bool                  `json:"showNotificationPrompt"`
	NotificationsGranted   bool                  `json:"notificationsGranted"`
	DarkMode               bool                  `json:"darkMode"`
	DiscordOpenWeb         bool                  `json:"discordOpenWeb"`
	DebugLogger            bool                  `json:"debugLogger"`
	Language               string                `json:"language"`
	IsFirstInstance        bool                  `json:"isFirstInstance"`
	Connection             model.ConnectionState `json:"connection"`
	Alert                  *Alert                `json:"alert,omitempty"`
}

// Status returns a copy of the current status.
func (p *Portal) Status() Status {
	p.mu.RLock()
	status := p.status
	p.mu.RUnlock()

	if status.Alert != nil {
		alert := *status.Alert
		status.Alert = &alert
	}
	status.IsFirstInstance = p.Probe.IsFirst()
	status.Connection = p.Realtime.State()
	return status
}

// SubscribeStatus streams status changes.
func (p *Portal) SubscribeStatus() (<-chan event.Event, func()) {
	return p.bus.Subscribe(event.TypeStatusChanged)
}

func (p *Portal) DismissAlert() {
	p.updateStatus(func(s *Status) { s.Alert = nil })
}

func (p *Portal) newAlert(color AlertColor, message string, closeable bool) {
	p.updateStatus(func(s *Status) {
		s.Alert = &Alert{Color: color, Message: message, Closeable: closeable}
	})
}

func (p *Portal) updateStatus(mutate func(*Status)) {
	p.mu.Lock()
	mutate(&p.status)
	snapshot := p.status
	p.mu.Unlock()

	p.bus.Publish(event.New(event.TypeStatusChanged, snapshot))
}
