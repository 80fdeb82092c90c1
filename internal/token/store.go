package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"medrunner-portal/internal/localstore"
	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// Exchanger performs the remote refresh exchange.
type Exchanger interface {
	Exchange(ctx context.Context) (model.TokenResponse, error)
}

type Options struct {
	// Skew is subtracted from the access token lifetime before it is
	// considered stale. Zero means the token is used until its exact expiry.
	Skew time.Duration

	// OnUnauthenticated runs after a rejected exchange has discarded the
	// credential. The app wires it to the session reset.
	OnUnauthenticated func()

	Now func() time.Time
}

type Store struct {
	exchanger Exchanger
	local     localstore.Store
	opts      Options

	mu    sync.RWMutex
	cred  model.Credential
	group singleflight.Group
}

func NewStore(exchanger Exchanger, local localstore.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{exchanger: exchanger, local: local, opts: opts}
}

// SetOnUnauthenticated replaces the rejection callback.
func (s *Store) SetOnUnauthenticated(fn func()) {
	s.mu.Lock()
	s.opts.OnUnauthenticated = fn
	s.mu.Unlock()
}

// Credential returns the current credential without refreshing it.
func (s *Store) Credential() model.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// GetValidAccessToken returns the current credential while it is valid and
// otherwise performs exactly one remote exchange, shared by concurrent callers.
func (s *Store) GetValidAccessToken(ctx context.Context) (model.Credential, error) {
	if cred := s.Credential(); cred.ValidAt(s.opts.Now(), s.opts.Skew) {
		return cred, nil
	}

	v, err, shared := s.group.Do("exchange", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return model.Credential{}, err
	}
	if shared {
		slog.Debug("token exchange shared with concurrent caller")
	}

	return v.(model.Credential), nil
}

// TokenSource adapts the store to the bearer callback used by the API client.
func (s *Store) TokenSource() func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		cred, err := s.GetValidAccessToken(ctx)
		if err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	}
}

// SetCredential atomically replaces the credential and persists the expiry
// markers. The refresh secret itself is never persisted here.
func (s *Store) SetCredential(cred model.Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	if s.local == nil {
		return nil
	}

	if !cred.AccessTokenExpiry.IsZero() {
		if err := localstore.SetTime(s.local, localstore.KeyAccessTokenExpiration, cred.AccessTokenExpiry); err != nil {
			return fmt.Errorf("persist access expiry: %w", err)
		}
	}
	if !cred.RefreshTokenExpiry.IsZero() {
		if err := localstore.SetTime(s.local, localstore.KeyRefreshTokenExpiration, cred.RefreshTokenExpiry); err != nil {
			return fmt.Errorf("persist refresh expiry: %w", err)
		}
	}

	return nil
}

// ApplyTokens installs the result of a sign-in or exchange call.
func (s *Store) ApplyTokens(tokens model.TokenResponse) (model.Credential, error) {
	cred, err := credentialFrom(tokens)
	if err != nil {
		return model.Credential{}, err
	}

	if err := s.SetCredential(cred); err != nil {
		return model.Credential{}, err
	}

	return cred, nil
}

// HasValidRefreshMarker reports whether the persisted refresh expiry is still
// in the future. It does not prove the refresh secret is accepted remotely.
func (s *Store) HasValidRefreshMarker() bool {
	if s.local == nil {
		return false
	}

	expiry, ok := localstore.GetTime(s.local, localstore.KeyRefreshTokenExpiration)
	return ok && expiry.After(s.opts.Now())
}

// Invalidate drops the access token so the next caller exchanges for a fresh
// one. The refresh marker is kept.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cred.AccessToken = ""
	s.cred.AccessTokenExpiry = time.Time{}
	s.mu.Unlock()

	if s.local != nil {
		_ = s.local.Remove(localstore.KeyAccessTokenExpiration)
	}
}

// Clear discards the credential and both persisted markers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cred = model.Credential{}
	s.mu.Unlock()

	if s.local == nil {
		return
	}
	if err := s.local.Remove(localstore.KeyAccessTokenExpiration); err != nil {
		slog.Warn("failed to remove access expiry marker", "error", err)
	}
	if err := s.local.Remove(localstore.KeyRefreshTokenExpiration); err != nil {
		slog.Warn("failed to remove refresh expiry marker", "error", err)
	}
}

func (s *Store) refresh(ctx context.Context) (model.Credential, error) {
	// A concurrent flight may have finished between the check and Do.
	if cred := s.Credential(); cred.ValidAt(s.opts.Now(), s.opts.Skew) {
		return cred, nil
	}

	tokens, err := s.exchanger.Exchange(ctx)
	if err != nil {
		if apierror.IsKind(err, apierror.KindUnauthenticated) {
			slog.Info("refresh exchange rejected; discarding credential", "status", apierror.StatusOf(err))
			s.Clear()

			s.mu.RLock()
			onUnauthenticated := s.opts.OnUnauthenticated
			s.mu.RUnlock()
			if onUnauthenticated != nil {
				onUnauthenticated()
			}
		}
		return model.Credential{}, fmt.Errorf("exchange refresh token: %w", err)
	}

	cred, err := credentialFrom(tokens)
	if err != nil {
		return model.Credential{}, err
	}
	if !cred.ValidAt(s.opts.Now(), s.opts.Skew) {
		return model.Credential{}, apierror.New(apierror.KindTransient, "STALE_TOKEN", "exchange returned an already expired token", cred.AccessTokenExpiry.String(), http.StatusOK)
	}

	if err := s.SetCredential(cred); err != nil {
		slog.Warn("failed to persist credential markers", "error", err)
	}

	slog.Debug("access token refreshed", "expires_at", cred.AccessTokenExpiry)
	return cred, nil
}

func credentialFrom(tokens model.TokenResponse) (model.Credential, error) {
	if tokens.AccessToken == "" {
		return model.Credential{}, apierror.Unauthenticated("no access token issued")
	}

	expiry := tokens.AccessTokenExpiresAt
	if expiry.IsZero() {
		parsed, err := ExpiryFromJWT(tokens.AccessToken)
		if err != nil {
			return model.Credential{}, apierror.New(apierror.KindTransient, "INVALID_TOKEN", "cannot determine access token expiry", err.Error(), http.StatusOK)
		}
		expiry = parsed
	}

	return model.Credential{
		AccessToken:         tokens.AccessToken,
		AccessTokenExpiry:   expiry.UTC(),
		RefreshTokenPresent: true,
		RefreshTokenExpiry:  tokens.RefreshTokenExpiresAt.UTC(),
	}, nil
}

// ExpiryFromJWT reads the exp claim without verifying the signature; the
// client only needs to know when to stop using the token.
func ExpiryFromJWT(raw string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}

	return claims.ExpiresAt.Time, nil
}
