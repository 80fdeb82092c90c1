package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"medrunner-portal/internal/guard"
	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/settings"
)

// SignIn exchanges a sign-in code for tokens and boots the session.
func (p *Portal) SignIn(ctx context.Context, code string) error {
	tokens, err := p.deps.Remote.SignIn(ctx, code)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if _, err := p.Tokens.ApplyTokens(tokens); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	initialized := p.InitializeAPI(ctx)
	return p.InitializeApp(ctx, initialized)
}

// SignOut clears the session and credential and closes the realtime
// connection before returning, so a following sign-in dials afresh.
func (p *Portal) SignOut(ctx context.Context) {
	if err := p.deps.Remote.SignOut(ctx); err != nil {
		slog.Warn("remote sign out failed", "error", err)
	}

	p.mu.Lock()
	p.refreshSeeded = false
	p.mu.Unlock()

	p.Sessions.Reset()
	p.Realtime.Stop()
	p.Tokens.Clear()
	p.updateStatus(func(s *Status) {
		s.APIInitialized = false
		s.NotificationsGranted = false
		s.ShowNotificationPrompt = false
	})
}

// LinkHandle links a game handle and applies the result the same way a
// pushed person update would.
func (p *Portal) LinkHandle(ctx context.Context, handle string) error {
	if err := p.deps.Remote.LinkHandle(ctx, handle); err != nil {
		return fmt.Errorf("link handle: %w", err)
	}

	p.onPersonUpdate(ctx)
	return nil
}

// UpdateSettings persists a partial settings update.
func (p *Portal) UpdateSettings(ctx context.Context, partial map[string]any) (model.SyncedSettings, error) {
	record, err := p.Settings.Persist(ctx, partial)
	if err != nil {
		return model.SyncedSettings{}, err
	}

	if _, ok := partial[settings.KeySelectedLanguage]; ok {
		p.applyLanguage()
	}
	if _, ok := partial[settings.KeyGlobalNotifications]; ok {
		p.evaluateNotifications()
	}
	return record, nil
}

// SetLocalPreference stores a device local preference.
func (p *Portal) SetLocalPreference(key string, value bool) error {
	if err := localstore.SetBool(p.deps.Local, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	p.loadLocalPreferences()
	return nil
}

// Navigate evaluates the guard of the page at fullPath. Unknown pages are
// open. A denial raises an alert.
func (p *Portal) Navigate(ctx context.Context, fullPath string) guard.Decision {
	route, ok := guard.Lookup(p.routes, fullPath)
	if !ok {
		return guard.Allow()
	}

	decision := p.Guards.Evaluate(ctx, route, fullPath)
	if decision.Outcome == guard.OutcomeDeny {
		p.newAlert(AlertRed, decision.Alert, false)
	}
	return decision
}

// Refresh refetches the user outside of any push event.
func (p *Portal) Refresh(ctx context.Context) (model.Person, error) {
	profile, err := p.fetchUser(ctx)
	if errors.Is(err, model.ErrStaleResponse) {
		return p.Sessions.Snapshot().User, nil
	}
	return profile, err
}
