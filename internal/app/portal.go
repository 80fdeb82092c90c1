package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"medrunner-portal/internal/api"
	"medrunner-portal/internal/config"
	"medrunner-portal/internal/event"
	"medrunner-portal/internal/guard"
	"medrunner-portal/internal/instance"
	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/notify"
	"medrunner-portal/internal/realtime"
	"medrunner-portal/internal/session"
	"medrunner-portal/internal/settings"
	"medrunner-portal/internal/token"
)

// Remote is the part of the Medrunner API the portal drives.
type Remote interface {
	Exchange(ctx context.Context) (model.TokenResponse, error)
	SignIn(ctx context.Context, code string) (model.TokenResponse, error)
	SignOut(ctx context.Context) error
	FetchUser(ctx context.Context) (model.Person, error)
	FetchBlockStatus(ctx context.Context) (model.BlockStatus, error)
	PublicOrgSettings(ctx context.Context) (model.PublicOrgSettings, error)
	LinkHandle(ctx context.Context, handle string) error
	UpdateSettings(ctx context.Context, blob string) error
}

type Deps struct {
	Remote Remote
	Local  localstore.Store
	Dialer realtime.Dialer
	Sender notify.Sender
	Level  *slog.LevelVar

	// Permission is the platform notification permission.
	Permission notify.Permission
	// Focused reports whether the user is looking at the portal.
	Focused func() bool
	// RefreshSeeded is set when a refresh secret was supplied out of band,
	// so boot attempts an exchange even without a persisted marker.
	RefreshSeeded bool
	Now           func() time.Time
}

// Portal is one signed-in (or signed-out) portal client.
type Portal struct {
	cfg    *config.Config
	deps   Deps
	bus    *event.InMemoryBus
	ctx    context.Context
	cancel context.CancelFunc

	Tokens   *token.Store
	Sessions *session.Store
	Settings *settings.Synchronizer
	Realtime *realtime.Coordinator
	Guards   *guard.Evaluator
	Probe    *instance.Probe
	Notifier *notify.Gate

	routes    []guard.Route
	stopWatch func()
	rebinds   sync.WaitGroup
	closeOnce sync.Once

	mu            sync.RWMutex
	status        Status
	refreshSeeded bool
}

func New(cfg *config.Config, deps Deps) (*Portal, error) {
	if deps.Remote == nil || deps.Dialer == nil {
		return nil, fmt.Errorf("remote and dialer are required")
	}
	if deps.Local == nil {
		deps.Local = localstore.NewMemoryStore()
	}
	if deps.Sender == nil {
		deps.Sender = notify.LogSender{}
	}
	if deps.Focused == nil {
		deps.Focused = func() bool { return false }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := event.NewBus()

	p := &Portal{
		cfg:    cfg,
		deps:   deps,
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		routes: guard.DefaultRoutes(),

		refreshSeeded: deps.RefreshSeeded,
	}

	p.Sessions = session.NewStore(settings.ApplyFromBlob, bus)
	p.Tokens = token.NewStore(deps.Remote, deps.Local, token.Options{
		Skew:              cfg.TokenSkew,
		OnUnauthenticated: p.Sessions.Reset,
		Now:               deps.Now,
	})
	p.Settings = settings.NewSynchronizer(deps.Remote, p.Sessions)
	p.Realtime = realtime.New(deps.Dialer, p.Tokens.TokenSource(), bus, realtime.Options{
		ReconnectDelay: cfg.ReconnectDelay,
		MaxAttempts:    cfg.ReconnectAttempts,
		Epoch:          p.Sessions.Epoch,
	})
	p.stopWatch = p.Realtime.Watch(bus)
	p.Guards = guard.NewEvaluator(p.Sessions, p.Realtime, p.Tokens, p.revalidate)
	p.Probe = instance.NewProbe(bus)
	p.Notifier = notify.NewGate(deps.Sender, gateEnv{focused: deps.Focused, probe: p.Probe})

	if err := p.registerPushHandlers(); err != nil {
		cancel()
		return nil, err
	}

	return p, nil
}

// NewFromConfig wires the portal to the HTTP API and websocket hub named by
// cfg.
func NewFromConfig(cfg *config.Config, local localstore.Store, level *slog.LevelVar) (*Portal, error) {
	client, err := api.New(cfg.APIURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	if cfg.RefreshToken != "" {
		client.SeedRefreshCookie(cfg.RefreshToken)
	}

	p, err := New(cfg, Deps{
		Remote:        client,
		Local:         local,
		Dialer:        realtime.NewWebsocketDialer(client.HubURL(cfg.HubPath)),
		Level:         level,
		Permission:    notify.PermissionGranted,
		RefreshSeeded: cfg.RefreshToken != "",
	})
	if err != nil {
		return nil, err
	}

	client.SetTokenSource(p.Tokens.TokenSource())
	return p, nil
}

// Bus exposes the portal event stream to UI consumers.
func (p *Portal) Bus() event.Bus {
	return p.bus
}

// Run boots the portal and blocks until ctx is done.
func (p *Portal) Run(ctx context.Context) error {
	p.Boot(ctx)

	<-ctx.Done()
	p.Close()
	slog.Info("portal stopped")
	return nil
}

// Boot restores a persisted session when possible and loads app state. It
// reports whether the API was initialized with a valid credential.
func (p *Portal) Boot(ctx context.Context) bool {
	initialized := p.InitializeAPI(ctx)
	if err := p.InitializeApp(ctx, initialized); err != nil {
		slog.Warn("portal started without a session", "error", err)
	}

	slog.Info("portal running",
		"api_initialized", initialized,
		"authenticated", p.Sessions.IsAuthenticated(),
		"realtime", p.Realtime.State().String(),
	)
	return initialized
}

// Close stops the realtime connection and background work.
func (p *Portal) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.stopWatch()
		p.rebinds.Wait()
		p.Realtime.Stop()
		p.Probe.Close()
	})
}

// revalidate is the guard's single user fetch.
func (p *Portal) revalidate(ctx context.Context) error {
	_, err := p.fetchUser(ctx)
	return err
}

type gateEnv struct {
	focused func() bool
	probe   *instance.Probe
}

func (e gateEnv) Focused() bool { return e.focused() }
func (e gateEnv) IsFirst() bool { return e.probe.IsFirst() }
