package api

import (
	"context"
	"net/http"
	"strings"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// Exchange trades the refresh cookie held in the jar for a new access token.
func (c *Client) Exchange(ctx context.Context) (model.TokenResponse, error) {
	var tokens model.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/exchange", nil, nil, false, &tokens); err != nil {
		return model.TokenResponse{}, apierror.AsCredentialRejection(err)
	}

	if strings.TrimSpace(tokens.AccessToken) == "" {
		return model.TokenResponse{}, apierror.Unauthenticated("exchange returned no access token")
	}

	return tokens, nil
}

// SignIn completes the OAuth callback by exchanging the provider code.
func (c *Client) SignIn(ctx context.Context, code string) (model.TokenResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.TokenResponse{}, apierror.Validation("code is required", "code")
	}

	var tokens model.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signin", nil, model.SignInRequest{Code: code}, false, &tokens); err != nil {
		return model.TokenResponse{}, apierror.AsCredentialRejection(err)
	}

	return tokens, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false, nil)
}
