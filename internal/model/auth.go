package model

import "time"

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AuthClaims is what the development server reads back from a signed token.
// Linked is fixed at issue time, so a client that links its handle must
// exchange for a fresh token before the hub treats it as linked.
type AuthClaims struct {
	PersonID  string
	DiscordID string
	TokenID   string
	Type      string
	Linked    bool
	ExpiresAt time.Time
}

// IssuedTokens pairs a signed access token with its refresh secret.
type IssuedTokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Response returns the body sent to clients; the refresh secret only ever
// travels as a cookie.
func (t IssuedTokens) Response() TokenResponse {
	return TokenResponse{
		AccessToken:           t.AccessToken,
		AccessTokenExpiresAt:  t.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: t.RefreshTokenExpiresAt,
	}
}
