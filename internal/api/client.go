package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// RefreshCookieName is the cookie carrying the refresh secret. The client
// never reads it; the jar replays it on the exchange call.
const RefreshCookieName = "refreshToken"

// TokenSource yields a valid access token for an authenticated call.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu    sync.RWMutex
	token TokenSource
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http(s): %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: parsed,
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// SetTokenSource installs the callback used for bearer authentication.
func (c *Client) SetTokenSource(source TokenSource) {
	c.mu.Lock()
	c.token = source
	c.mu.Unlock()
}

// SeedRefreshCookie places a refresh secret into the jar, e.g. from config on
// a fresh process.
func (c *Client) SeedRefreshCookie(refreshToken string) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return
	}

	c.http.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
	}})
}

// HubURL returns the websocket URL of the named hub path.
func (c *Client) HubURL(path string) string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, authed bool, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		source := c.tokenSource()
		if source == nil {
			return apierror.Unauthenticated("no token source configured")
		}
		token, err := source(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apierror.New(apierror.KindTransient, "NETWORK_ERROR", "remote call failed", err.Error(), 0)
	}
	defer resp.Body.Close()

	var env model.Envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		if resp.StatusCode >= http.StatusBadRequest {
			return apierror.FromStatus(resp.StatusCode, "", "remote call failed")
		}
		return apierror.New(apierror.KindTransient, "DECODE_ERROR", "malformed response envelope", decodeErr.Error(), resp.StatusCode)
	}

	if !env.Success {
		status := env.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}

		code, message := "", "remote call failed"
		if env.Error != nil {
			code, message = env.Error.Code, env.Error.Message
		}
		slog.Debug("remote call failed", "method", method, "path", path, "status", status, "code", code)
		return apierror.FromStatus(status, code, message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return apierror.New(apierror.KindTransient, "DECODE_ERROR", "malformed response data", err.Error(), resp.StatusCode)
	}

	return nil
}
