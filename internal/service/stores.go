package service

import (
	"context"
	"time"

	"medrunner-portal/internal/model"
)

// Both the pgx and the memory repositories satisfy these.

type PersonStore interface {
	FindByID(ctx context.Context, id string) (model.Person, error)
	FindByDiscordID(ctx context.Context, discordID string) (model.Person, error)
	Create(ctx context.Context, p model.Person) error
	SetRSIHandle(ctx context.Context, id string, handle string, at time.Time) (model.Person, error)
	SetPreferencesBlob(ctx context.Context, id string, blob string, at time.Time) (model.Person, error)
	SetActiveEmergency(ctx context.Context, id string, emergencyID string, at time.Time) (model.Person, error)
}

type RefreshTokenStore interface {
	Store(ctx context.Context, fingerprint string, personID string, expiresAt time.Time) error
	Validate(ctx context.Context, fingerprint string) (string, error)
	Revoke(ctx context.Context, fingerprint string) error
	RevokeAllForPerson(ctx context.Context, personID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

type EmergencyStore interface {
	Create(ctx context.Context, e model.Emergency) error
	Update(ctx context.Context, e model.Emergency) error
	FindByID(ctx context.Context, id string) (model.Emergency, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Emergency, error)
	ListByClient(ctx context.Context, clientID string, limit int, offset int) ([]model.Emergency, int, error)
}

type BlockStore interface {
	Add(ctx context.Context, report model.BlockReport) error
	ListByHandle(ctx context.Context, handle string) ([]model.BlockReport, error)
	ListByOrg(ctx context.Context, orgSID string) ([]model.BlockReport, error)
}
