package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/logger"
	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// InitializeAPI restores the session credential and opens the realtime
// connection. Without a valid refresh marker it makes no network call and
// the portal boots signed out.
func (p *Portal) InitializeAPI(ctx context.Context) bool {
	initialized := p.initializeAPI(ctx)
	p.updateStatus(func(s *Status) { s.APIInitialized = initialized })
	return initialized
}

func (p *Portal) initializeAPI(ctx context.Context) bool {
	p.mu.RLock()
	seeded := p.refreshSeeded
	p.mu.RUnlock()

	if !p.Tokens.HasValidRefreshMarker() && !seeded {
		slog.Info("no valid refresh marker; starting signed out")
		return false
	}

	if _, err := p.Tokens.GetValidAccessToken(ctx); err != nil {
		slog.Warn("failed to restore access token", "kind", apierror.KindOf(err), "error", err)
		return false
	}

	if err := p.Realtime.Start(ctx); err != nil {
		slog.Error("failed to start realtime connection", "error", err)
		return false
	}

	return true
}

// InitializeApp loads local preferences and, when the API is initialized,
// the user, block status, org settings and synced settings. Only the user
// fetch is fatal; the other calls are best effort.
func (p *Portal) InitializeApp(ctx context.Context, apiInitialized bool) error {
	p.Probe.Start()
	p.loadLocalPreferences()

	if apiInitialized {
		if _, err := p.fetchUser(ctx); err != nil && !errors.Is(err, model.ErrStaleResponse) {
			return fmt.Errorf("fetch user: %w", err)
		}

		blocked, err := p.deps.Remote.FetchBlockStatus(ctx)
		if err != nil {
			slog.Warn("block status check failed", "error", err)
			p.updateStatus(func(s *Status) {
				s.InitError = ErrorString(apierror.StatusOf(err), MsgAppInitialization+" [blockCheck]")
			})
		} else {
			p.Sessions.MarkBlocked(blocked.Blocked)
		}
	}

	p.applyLanguage()

	if apiInitialized {
		if err := p.initializeSettings(ctx); err != nil {
			slog.Warn("settings initialization failed", "error", err)
			p.updateStatus(func(s *Status) {
				s.InitError = ErrorString(apierror.StatusOf(err), MsgAppInitialization+" [initializeSettings]")
			})
		}
	}

	return nil
}

func (p *Portal) initializeSettings(ctx context.Context) error {
	org, err := p.deps.Remote.PublicOrgSettings(ctx)
	if err != nil {
		slog.Warn("public org settings unavailable", "error", err)
	} else {
		p.Sessions.SetOrgSettings(org)
	}

	snapshot := p.Sessions.Snapshot()
	if _, err := p.Settings.MigrateLegacyIfNeeded(ctx, snapshot.User); err != nil {
		return err
	}

	p.evaluateNotifications()
	return nil
}

func (p *Portal) evaluateNotifications() {
	snapshot := p.Sessions.Snapshot()
	if !snapshot.IsAuthenticated {
		return
	}

	prompt := p.Notifier.Evaluate(p.deps.Permission, snapshot.Settings.GlobalNotifications, snapshot.Settings.CustomSoundNotification)
	p.updateStatus(func(s *Status) {
		s.ShowNotificationPrompt = prompt
		s.NotificationsGranted = p.Notifier.Granted()
	})
}

func (p *Portal) loadLocalPreferences() {
	darkMode, _ := localstore.GetBool(p.deps.Local, localstore.KeyDarkMode)
	discordWeb, _ := localstore.GetBool(p.deps.Local, localstore.KeyDiscordOpenWeb)
	debug, _ := localstore.GetBool(p.deps.Local, localstore.KeyDebugLoggerEnabled)

	if debug && p.deps.Level != nil {
		logger.SetDebug(p.deps.Level, true)
	}

	p.updateStatus(func(s *Status) {
		s.DarkMode = darkMode
		s.DiscordOpenWeb = discordWeb
		s.DebugLogger = debug
	})
}

func (p *Portal) applyLanguage() {
	preferred := p.cfg.Language
	if stored, ok := p.deps.Local.Get(localstore.KeyLanguage); ok && stored != "" {
		preferred = stored
	}

	var synced string
	if snapshot := p.Sessions.Snapshot(); snapshot.IsAuthenticated {
		synced = snapshot.Settings.SelectedLanguage
	}

	language := SelectLanguage(synced, preferred, p.cfg.AvailableLocales)
	p.updateStatus(func(s *Status) { s.Language = language })
}

// fetchUser performs a ticketed user fetch and applies it to the session.
// The fetch that moves an authenticated user from unlinked to linked
// schedules the realtime rebind.
func (p *Portal) fetchUser(ctx context.Context) (model.Person, error) {
	ticket := p.Sessions.BeginFetch()

	profile, err := p.deps.Remote.FetchUser(ctx)
	if err != nil {
		return model.Person{}, err
	}

	previous, current, err := p.Sessions.PopulateChange(ticket, profile)
	if err != nil {
		return model.Person{}, err
	}

	if previous.IsAuthenticated && !previous.User.IsLinked() && current.User.IsLinked() {
		slog.Info("account linked; rebinding realtime connection", "user", profile.ID)
		p.scheduleRebind()
	}
	return profile, nil
}
