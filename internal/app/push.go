package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/notify"
)

func (p *Portal) registerPushHandlers() error {
	handlers := map[string]func([]json.RawMessage){
		model.TargetPersonUpdate: func([]json.RawMessage) {
			p.onPersonUpdate(p.ctx)
		},
		model.TargetOrgSettingsUpdate: p.onOrgSettingsUpdate,
		model.TargetDeploymentCreate:  p.onDeploymentCreate,
		model.TargetEmergencyUpdate:   p.onEmergencyUpdate,
	}

	for target, handler := range handlers {
		if err := p.Realtime.On(target, handler); err != nil {
			return fmt.Errorf("register %s handler: %w", target, err)
		}
	}

	p.Realtime.OnReconnecting(func(err error) {
		slog.Warn("realtime reconnecting", "error", err)
	})
	p.Realtime.OnReconnected(func() {
		// The refetched profile overrides anything pushed while disconnected.
		if _, err := p.fetchUser(p.ctx); err != nil && !errors.Is(err, model.ErrStaleResponse) {
			slog.Warn("refetch after reconnect failed", "error", err)
		}
	})
	p.Realtime.OnClosed(func(err error) {
		slog.Error("realtime connection closed", "error", err)
		p.newAlert(AlertRed, MsgRealtimeUnavailable, true)
	})

	return nil
}

// onPersonUpdate refetches the user. A fetch that links the account rebinds
// the connection.
func (p *Portal) onPersonUpdate(ctx context.Context) {
	_, err := p.fetchUser(ctx)
	if err == nil || errors.Is(err, model.ErrStaleResponse) {
		return
	}
	slog.Warn("person update fetch failed", "error", err)
	p.newAlert(AlertRed, MsgGlobalLoading, false)
}

// scheduleRebind runs the rebind off the read goroutine, which Stop waits on.
func (p *Portal) scheduleRebind() {
	p.rebinds.Add(1)
	go func() {
		defer p.rebinds.Done()

		if !p.Sessions.IsAuthenticated() {
			return
		}

		// The new connection must carry a token issued after linking.
		p.Tokens.Invalidate()
		if err := p.Realtime.Rebind(p.ctx); err != nil {
			slog.Error("realtime rebind failed", "error", err)
			p.newAlert(AlertRed, MsgRealtimeUnavailable, true)
		}
	}()
}

func (p *Portal) onOrgSettingsUpdate(args []json.RawMessage) {
	var update model.OrgSettings
	if !decodeFirst(args, &update) {
		return
	}

	if update.Public != nil {
		p.Sessions.SetOrgSettings(*update.Public)
	}
}

func (p *Portal) onDeploymentCreate(args []json.RawMessage) {
	var deployment model.Deployment
	if !decodeFirst(args, &deployment) {
		return
	}

	if deployment.ClientType == model.ClientTypeClientPortal {
		slog.Info("new portal deployment", "version", deployment.Version)
		p.updateStatus(func(s *Status) { s.ShowNewUpdateBanner = true })
	}
}

func (p *Portal) onEmergencyUpdate(args []json.RawMessage) {
	var emergency model.Emergency
	if !decodeFirst(args, &emergency) {
		return
	}

	if !p.Sessions.Snapshot().Settings.EmergencyUpdateNotification {
		return
	}

	body := emergency.StatusDescription
	if body == "" {
		body = fmt.Sprintf("%s / %s", emergency.System, emergency.Subsystem)
	}
	if _, err := p.Notifier.Notify(notify.Notification{
		Title: "Emergency update",
		Body:  body,
		Tag:   fmt.Sprintf("emergency-%s-%d", emergency.ID, emergency.Status),
	}); err != nil {
		slog.Warn("emergency notification failed", "emergency", emergency.ID, "error", err)
	}
}

func decodeFirst(args []json.RawMessage, out any) bool {
	if len(args) == 0 {
		slog.Debug("realtime event without arguments")
		return false
	}
	if err := json.Unmarshal(args[0], out); err != nil {
		slog.Warn("malformed realtime event", "error", err)
		return false
	}
	return true
}
