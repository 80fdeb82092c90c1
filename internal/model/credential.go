package model

import "time"

// Credential is the in-memory access credential. The refresh secret itself is
// held by the transport (cookie jar) and never appears here.
type Credential struct {
	AccessToken       string    `json:"-"`
	AccessTokenExpiry time.Time `json:"accessTokenExpiry"`

	RefreshTokenPresent bool      `json:"refreshTokenPresent"`
	RefreshTokenExpiry  time.Time `json:"refreshTokenExpiry,omitempty"`
}

// ValidAt reports whether the access token may still be used at now. An
// access token is usable only while its expiry is strictly after now+skew.
func (c Credential) ValidAt(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" || c.AccessTokenExpiry.IsZero() {
		return false
	}

	return c.AccessTokenExpiry.After(now.Add(skew))
}

// TokenResponse is returned by the remote exchange and sign-in operations.
type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt,omitempty"`
}

type SignInRequest struct {
	Code string `json:"code"`
}
