package guard

import (
	"context"
	"log/slog"
	"net/url"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/session"
)

// AlertRealtimeUnavailable is the alert surfaced when a page needs a healthy
// realtime connection.
const AlertRealtimeUnavailable = "error_wsDisconnectedPageAccessError"

type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeRedirect
	OutcomeDeny
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Decision is the result of a guard. Path is set for redirects and Alert for
// denials.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Path    string  `json:"path,omitempty"`
	Alert   string  `json:"alert,omitempty"`
}

func Allow() Decision {
	return Decision{Outcome: OutcomeAllow}
}

func RedirectTo(path string) Decision {
	return Decision{Outcome: OutcomeRedirect, Path: path}
}

// Deny keeps the navigation target valid but refuses it for now.
func Deny(alert string) Decision {
	return Decision{Outcome: OutcomeDeny, Alert: alert}
}

// State is everything a guard may read.
type State struct {
	Session    session.Snapshot
	Org        *model.PublicOrgSettings
	Connection model.ConnectionState
}

// Predicate decides access to fullPath, the requested path including its
// query. Predicates are pure.
type Predicate func(fullPath string, state State) Decision

func loginRedirect(fullPath string) Decision {
	if fullPath == "" || fullPath == "/" {
		return RedirectTo("/login")
	}
	return RedirectTo("/login?redirect=" + url.QueryEscape(fullPath))
}

func realtimeCheck(requiresRealtime bool, state State) (Decision, bool) {
	if requiresRealtime && state.Connection != model.ConnectionHealthy {
		return Deny(AlertRealtimeUnavailable), true
	}
	return Decision{}, false
}

// UserComplete admits authenticated users that are linked, or unlinked users
// when the org accepts anonymous alerts.
func UserComplete(requiresRealtime bool) Predicate {
	return func(fullPath string, state State) Decision {
		if !state.Session.IsAuthenticated {
			return loginRedirect(fullPath)
		}

		if !state.Session.User.IsLinked() && state.Org != nil && !state.Org.AnonymousAlertsEnabled {
			return RedirectTo("/login/link")
		}

		if d, denied := realtimeCheck(requiresRealtime, state); denied {
			return d
		}
		return Allow()
	}
}

func UserAuthenticated(requiresRealtime bool) Predicate {
	return func(fullPath string, state State) Decision {
		if !state.Session.IsAuthenticated {
			return loginRedirect(fullPath)
		}

		if d, denied := realtimeCheck(requiresRealtime, state); denied {
			return d
		}
		return Allow()
	}
}

func UserNotAuthenticated() Predicate {
	return func(_ string, state State) Decision {
		if state.Session.IsAuthenticated {
			return RedirectTo("/")
		}
		return Allow()
	}
}

func UserNotLinked() Predicate {
	return func(_ string, state State) Decision {
		if !state.Session.IsAuthenticated {
			return RedirectTo("/login")
		}
		if state.Session.User.IsLinked() {
			return RedirectTo("/")
		}
		return Allow()
	}
}

type Route struct {
	Name  string
	Path  string
	Guard Predicate
}

// DefaultRoutes lists the portal pages. Routes without a guard are open.
func DefaultRoutes() []Route {
	return []Route{
		{Name: "dashboard", Path: "/", Guard: UserComplete(false)},
		{Name: "emergency", Path: "/emergency", Guard: UserComplete(true)},
		{Name: "profile", Path: "/profile", Guard: UserComplete(false)},
		{Name: "login", Path: "/login", Guard: UserNotAuthenticated()},
		{Name: "loginLink", Path: "/login/link", Guard: UserNotLinked()},
		{Name: "auth", Path: "/auth"},
		{Name: "redeem", Path: "/redeem", Guard: UserAuthenticated(false)},
	}
}

// Lookup finds the route for a path, ignoring any query.
func Lookup(routes []Route, fullPath string) (Route, bool) {
	path := fullPath
	if u, err := url.Parse(fullPath); err == nil {
		path = u.Path
	}
	if path == "/auth/register" {
		path = "/auth"
	}

	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Sessions is the read side of the session the evaluator consults.
type Sessions interface {
	Snapshot() session.Snapshot
	OrgSettings() (model.PublicOrgSettings, bool)
}

type ConnectionStater interface {
	State() model.ConnectionState
}

// RefreshMarker reports whether a session could be restored silently.
type RefreshMarker interface {
	HasValidRefreshMarker() bool
}

// Revalidator refetches the user and populates the session.
type Revalidator func(ctx context.Context) error

type Evaluator struct {
	sessions   Sessions
	connection ConnectionStater
	marker     RefreshMarker
	revalidate Revalidator
}

func NewEvaluator(sessions Sessions, connection ConnectionStater, marker RefreshMarker, revalidate Revalidator) *Evaluator {
	return &Evaluator{
		sessions:   sessions,
		connection: connection,
		marker:     marker,
		revalidate: revalidate,
	}
}

// State captures the current guard inputs.
func (e *Evaluator) State() State {
	state := State{
		Session:    e.sessions.Snapshot(),
		Connection: model.ConnectionNotStarted,
	}
	if org, ok := e.sessions.OrgSettings(); ok {
		state.Org = &org
	}
	if e.connection != nil {
		state.Connection = e.connection.State()
	}
	return state
}

// Evaluate runs the route guard. An unauthenticated session with a valid
// refresh marker is revalidated once before deciding.
func (e *Evaluator) Evaluate(ctx context.Context, route Route, fullPath string) Decision {
	if route.Guard == nil {
		return Allow()
	}

	state := e.State()
	if !state.Session.IsAuthenticated && e.revalidate != nil && e.marker != nil && e.marker.HasValidRefreshMarker() {
		if err := e.revalidate(ctx); err != nil {
			slog.Debug("guard revalidation failed", "route", route.Name, "error", err)
		}
		state = e.State()
	}

	decision := route.Guard(fullPath, state)
	slog.Debug("guard decision", "route", route.Name, "outcome", decision.Outcome.String(), "path", decision.Path)
	return decision
}
