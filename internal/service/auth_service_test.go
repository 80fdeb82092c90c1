package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

func TestSignInRegistersUnknownPerson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.auth.SignIn(ctx, "discord-1")
	require.NoError(t, err)
	assert.True(t, tokens.AccessTokenExpiresAt.Equal(testNow.Add(15*time.Minute)))
	assert.True(t, tokens.RefreshTokenExpiresAt.Equal(testNow.Add(24*time.Hour)))

	claims, err := f.auth.ValidateToken(tokens.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "discord-1", claims.DiscordID)
	assert.False(t, claims.Linked)

	person, err := f.persons.FindByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	assert.Equal(t, person.ID, claims.PersonID)

	again, err := f.auth.SignIn(ctx, "discord-1")
	require.NoError(t, err)
	claims, err = f.auth.ValidateToken(again.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, person.ID, claims.PersonID)
}

func TestSignInRequiresCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.SignIn(context.Background(), "  ")
	assert.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
}

func TestExchangeRotatesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.person(t, "d-1", "Pilot")

	first, err := f.auth.SignIn(ctx, "d-1")
	require.NoError(t, err)

	second, err := f.auth.Exchange(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := f.auth.ValidateToken(second.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.True(t, claims.Linked)

	_, err = f.auth.Exchange(ctx, first.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated), "a used refresh token must be rejected")

	_, err = f.auth.Exchange(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestExchangeRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.person(t, "d-1", "")

	tokens, err := f.auth.SignIn(ctx, "d-1")
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"access token": tokens.AccessToken,
		"after logout": tokens.RefreshToken,
		"wrong secret": signedWith(t, "other-secret"),
	}
	require.NoError(t, f.auth.Logout(ctx, tokens.RefreshToken))

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Exchange(ctx, token)
			assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))
			assert.Equal(t, 401, apierror.StatusOf(err))
		})
	}
}

func TestValidateTokenExpiry(t *testing.T) {
	f := newFixture(t)
	f.person(t, "d-1", "")

	tokens, err := f.auth.SignIn(context.Background(), "d-1")
	require.NoError(t, err)

	f.auth.now = func() time.Time { return testNow.Add(16 * time.Minute) }
	_, err = f.auth.ValidateToken(tokens.AccessToken, model.TokenTypeAccess)
	assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))
}

func TestFingerprintIsStable(t *testing.T) {
	assert.Equal(t, Fingerprint("secret"), Fingerprint("secret"))
	assert.NotEqual(t, Fingerprint("secret"), Fingerprint("secret2"))
	assert.Len(t, Fingerprint("secret"), 64)
}

func signedWith(t *testing.T, secret string) string {
	t.Helper()
	other := NewAuthService(nil, nil, secret, time.Minute, time.Hour)
	token, err := other.signToken(map[string]any{"sub": "p-d-1", "typ": model.TokenTypeRefresh, "exp": testNow.Add(time.Hour).Unix()})
	require.NoError(t, err)
	return token
}
