package notify

import (
	"fmt"
	"log/slog"
	"sync"
)

type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

type Notification struct {
	Title string
	Body  string
	Tag   string
	// Silent suppresses the platform sound when a custom sound is played.
	Silent bool
}

// Sender delivers notifications to the desktop.
type Sender interface {
	Send(n Notification) error
	PlaySound() error
}

// Environment answers the runtime questions the gate depends on.
type Environment interface {
	Focused() bool
	IsFirst() bool
}

type Gate struct {
	sender Sender
	env    Environment

	mu          sync.Mutex
	granted     bool
	customSound bool
	sentTags    map[string]struct{}
}

func NewGate(sender Sender, env Environment) *Gate {
	return &Gate{sender: sender, env: env, sentTags: make(map[string]struct{})}
}

// Evaluate applies the platform permission and the user's preference. It
// reports whether the user should be asked for permission.
func (g *Gate) Evaluate(permission Permission, globalNotifications bool, customSound bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.granted = permission == PermissionGranted && globalNotifications
	g.customSound = customSound
	return permission == PermissionDefault && globalNotifications
}

func (g *Gate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

// Notify sends n when notifications are granted, the app is not focused and
// this is the first instance. The custom sound plays once per tag.
func (g *Gate) Notify(n Notification) (bool, error) {
	if g.env.Focused() || !g.env.IsFirst() {
		return false, nil
	}

	g.mu.Lock()
	if !g.granted {
		g.mu.Unlock()
		return false, nil
	}
	_, seen := g.sentTags[n.Tag]
	g.sentTags[n.Tag] = struct{}{}
	customSound := g.customSound
	g.mu.Unlock()

	n.Silent = customSound
	if err := g.sender.Send(n); err != nil {
		return false, fmt.Errorf("send notification %s: %w", n.Tag, err)
	}

	if customSound && !seen {
		if err := g.sender.PlaySound(); err != nil {
			slog.Warn("notification sound failed", "tag", n.Tag, "error", err)
		}
	}
	return true, nil
}

// LogSender writes notifications to the structured log.
type LogSender struct{}

func (LogSender) Send(n Notification) error {
	slog.Info("notification", "title", n.Title, "body", n.Body, "tag", n.Tag)
	return nil
}

func (LogSender) PlaySound() error {
	return nil
}
