package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// AuthService issues signed access tokens and rotating refresh secrets.
// Only a blake2b fingerprint of each refresh secret is stored.
type AuthService struct {
	persons    PersonStore
	tokens     RefreshTokenStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(persons PersonStore, tokens RefreshTokenStore, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		persons:    persons,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SignIn completes the development OAuth flow. The code stands in for the
// provider's authorization code and is taken as the Discord id; unknown ids
// get a fresh, unlinked person.
func (s *AuthService) SignIn(ctx context.Context, code string) (model.IssuedTokens, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.IssuedTokens{}, apierror.Validation("code is required", "code")
	}

	person, err := s.persons.FindByDiscordID(ctx, code)
	if errors.Is(err, model.ErrPersonNotFound) {
		person, err = s.register(ctx, code)
	}
	if err != nil {
		return model.IssuedTokens{}, err
	}

	if !person.Active {
		return model.IssuedTokens{}, apierror.New(apierror.KindUnauthenticated, "FORBIDDEN", "account is deactivated", "", http.StatusForbidden)
	}

	slog.Info("person signed in", "person_id", person.ID)
	return s.issue(ctx, person)
}

// Exchange trades a refresh secret for new tokens. The presented secret is
// revoked, so each one works once.
func (s *AuthService) Exchange(ctx context.Context, refreshToken string) (model.IssuedTokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.IssuedTokens{}, apierror.Unauthenticated("refresh token is missing")
	}

	claims, err := s.ValidateToken(refreshToken, model.TokenTypeRefresh)
	if err != nil {
		return model.IssuedTokens{}, err
	}

	fingerprint := Fingerprint(refreshToken)
	ownerID, err := s.tokens.Validate(ctx, fingerprint)
	if errors.Is(err, model.ErrTokenNotFound) || (err == nil && ownerID != claims.PersonID) {
		return model.IssuedTokens{}, apierror.Unauthenticated("refresh token is invalid")
	}
	if err != nil {
		return model.IssuedTokens{}, err
	}

	if err := s.tokens.Revoke(ctx, fingerprint); err != nil {
		return model.IssuedTokens{}, err
	}

	person, err := s.persons.FindByID(ctx, claims.PersonID)
	if errors.Is(err, model.ErrPersonNotFound) {
		return model.IssuedTokens{}, apierror.Unauthenticated("person not found")
	}
	if err != nil {
		return model.IssuedTokens{}, err
	}

	return s.issue(ctx, person)
}

// Logout revokes the presented refresh secret. Unknown secrets are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, Fingerprint(refreshToken))
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.Unauthenticated("invalid token signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthenticated("invalid token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Unauthenticated("invalid token claims")
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.Unauthenticated("invalid token type")
	}

	claims := &model.AuthClaims{Type: typ}
	claims.PersonID, _ = claimsMap["sub"].(string)
	claims.DiscordID, _ = claimsMap["discord"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)
	claims.Linked, _ = claimsMap["linked"].(bool)
	if exp, err := claimsMap.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if claims.PersonID == "" {
		return nil, apierror.Unauthenticated("invalid token subject")
	}

	return claims, nil
}

// CleanExpired drops expired refresh fingerprints.
func (s *AuthService) CleanExpired(ctx context.Context) (int64, error) {
	return s.tokens.CleanExpired(ctx)
}

// Fingerprint is the stored form of a refresh secret.
func Fingerprint(refreshToken string) string {
	sum := blake2b.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) register(ctx context.Context, discordID string) (model.Person, error) {
	now := s.now()
	person := model.Person{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		Active:    true,
		Created:   now,
		Updated:   now,
	}

	if err := s.persons.Create(ctx, person); err != nil {
		return model.Person{}, fmt.Errorf("register person: %w", err)
	}

	slog.Info("person registered", "person_id", person.ID)
	return person, nil
}

func (s *AuthService) issue(ctx context.Context, person model.Person) (model.IssuedTokens, error) {
	now := s.now()
	accessExpiry := now.Add(s.accessTTL)
	refreshExpiry := now.Add(s.refreshTTL)

	accessToken, err := s.signToken(jwt.MapClaims{
		"sub":     person.ID,
		"discord": person.DiscordID,
		"linked":  person.IsLinked(),
		"typ":     model.TokenTypeAccess,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     accessExpiry.Unix(),
	})
	if err != nil {
		return model.IssuedTokens{}, err
	}

	refreshToken, err := s.signToken(jwt.MapClaims{
		"sub": person.ID,
		"typ": model.TokenTypeRefresh,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": refreshExpiry.Unix(),
	})
	if err != nil {
		return model.IssuedTokens{}, err
	}

	if err := s.tokens.Store(ctx, Fingerprint(refreshToken), person.ID, refreshExpiry); err != nil {
		return model.IssuedTokens{}, err
	}

	return model.IssuedTokens{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  time.Unix(accessExpiry.Unix(), 0).UTC(),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: time.Unix(refreshExpiry.Unix(), 0).UTC(),
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
