package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrunner-portal/internal/model"
)

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")

const personColumns = `id, discord_id, rsi_handle, roles, active, person_type, active_emergency,
	preferences_blob, legacy_preferences, created_at, updated_at`

type PersonRepository struct {
	pool *pgxpool.Pool
}

func NewPersonRepository(pool *pgxpool.Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

func (r *PersonRepository) FindByID(ctx context.Context, id string) (model.Person, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, fmt.Errorf("find person by id: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) FindByDiscordID(ctx context.Context, discordID string) (model.Person, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE discord_id = $1`, discordID)
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, fmt.Errorf("find person by discord id: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) Create(ctx context.Context, p model.Person) error {
	legacy, err := marshalLegacy(p.ClientPortalPreferences)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO persons (`+personColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.DiscordID, p.RSIHandle, p.Roles, p.Active, p.PersonType, p.ActiveEmergency,
		p.ClientPortalPreferencesBlob, legacy, p.Created, p.Updated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create person: %w", ErrDuplicate)
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (r *PersonRepository) SetRSIHandle(ctx context.Context, id string, handle string, at time.Time) (model.Person, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE persons SET rsi_handle = $2, updated_at = $3 WHERE id = $1
		 RETURNING `+personColumns, id, handle, at)
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, fmt.Errorf("set rsi handle: %w", err)
	}
	return p, nil
}

// SetPreferencesBlob stores blob and drops the legacy representation, which
// the blob supersedes.
func (r *PersonRepository) SetPreferencesBlob(ctx context.Context, id string, blob string, at time.Time) (model.Person, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE persons SET preferences_blob = $2, legacy_preferences = NULL, updated_at = $3 WHERE id = $1
		 RETURNING `+personColumns, id, blob, at)
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, fmt.Errorf("set preferences blob: %w", err)
	}
	return p, nil
}

func (r *PersonRepository) SetActiveEmergency(ctx context.Context, id string, emergencyID string, at time.Time) (model.Person, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE persons SET active_emergency = $2, updated_at = $3 WHERE id = $1
		 RETURNING `+personColumns, id, emergencyID, at)
	p, err := scanPerson(row)
	if err != nil {
		return model.Person{}, fmt.Errorf("set active emergency: %w", err)
	}
	return p, nil
}

func scanPerson(row pgx.Row) (model.Person, error) {
	var (
		p      model.Person
		legacy []byte
	)
	err := row.Scan(&p.ID, &p.DiscordID, &p.RSIHandle, &p.Roles, &p.Active, &p.PersonType, &p.ActiveEmergency,
		&p.ClientPortalPreferencesBlob, &legacy, &p.Created, &p.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Person{}, model.ErrPersonNotFound
	}
	if err != nil {
		return model.Person{}, err
	}

	if len(legacy) > 0 {
		if err := json.Unmarshal(legacy, &p.ClientPortalPreferences); err != nil {
			return model.Person{}, fmt.Errorf("decode legacy preferences: %w", err)
		}
	}
	return p, nil
}

func marshalLegacy(prefs map[string]any) ([]byte, error) {
	if len(prefs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode legacy preferences: %w", err)
	}
	return data, nil
}
