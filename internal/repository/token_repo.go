package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrunner-portal/internal/model"
)

// TokenRepository persists refresh-token fingerprints, never the secrets.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, fingerprint string, personID string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (fingerprint, person_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		fingerprint, personID, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Validate(ctx context.Context, fingerprint string) (string, error) {
	var personID string
	err := r.pool.QueryRow(ctx,
		`SELECT person_id FROM refresh_tokens
		 WHERE fingerprint = $1 AND expires_at > now()`, fingerprint).Scan(&personID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("validate refresh token: %w", err)
	}
	return personID, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, fingerprint string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForPerson(ctx context.Context, personID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE person_id = $1`, personID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
