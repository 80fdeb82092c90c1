package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrunner-portal/internal/model"
)

const emergencyColumns = `id, client_id, system, subsystem, threat_level, remarks, client_rsi_handle,
	client_discord_id, status, status_description, responding_team, is_complete, rating, created_at, updated_at`

type EmergencyRepository struct {
	pool *pgxpool.Pool
}

func NewEmergencyRepository(pool *pgxpool.Pool) *EmergencyRepository {
	return &EmergencyRepository{pool: pool}
}

func (r *EmergencyRepository) Create(ctx context.Context, e model.Emergency) error {
	team, err := json.Marshal(e.RespondingTeam)
	if err != nil {
		return fmt.Errorf("encode responding team: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO emergencies (`+emergencyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.ClientID, e.System, e.Subsystem, e.ThreatLevel, e.Remarks, e.ClientRSIHandle,
		e.ClientDiscordID, e.Status, e.StatusDescription, team, e.IsComplete, e.Rating, e.Created, e.Updated)
	if err != nil {
		return fmt.Errorf("create emergency: %w", err)
	}
	return nil
}

func (r *EmergencyRepository) Update(ctx context.Context, e model.Emergency) error {
	team, err := json.Marshal(e.RespondingTeam)
	if err != nil {
		return fmt.Errorf("encode responding team: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE emergencies
		 SET status = $2, status_description = $3, responding_team = $4, is_complete = $5, rating = $6, updated_at = $7
		 WHERE id = $1`,
		e.ID, e.Status, e.StatusDescription, team, e.IsComplete, e.Rating, e.Updated)
	if err != nil {
		return fmt.Errorf("update emergency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEmergencyNotFound
	}
	return nil
}

func (r *EmergencyRepository) FindByID(ctx context.Context, id string) (model.Emergency, error) {
	e, err := scanEmergency(r.pool.QueryRow(ctx, `SELECT `+emergencyColumns+` FROM emergencies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Emergency{}, model.ErrEmergencyNotFound
	}
	if err != nil {
		return model.Emergency{}, fmt.Errorf("find emergency: %w", err)
	}
	return e, nil
}

// FindByIDs returns the emergencies that exist among ids; unknown ids are
// skipped.
func (r *EmergencyRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Emergency, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+emergencyColumns+` FROM emergencies WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("find emergencies: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Emergency, error) {
		return scanEmergency(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan emergencies: %w", err)
	}
	return result, nil
}

// ListByClient pages a client's emergencies newest first.
func (r *EmergencyRepository) ListByClient(ctx context.Context, clientID string, limit int, offset int) ([]model.Emergency, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emergencies WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count emergencies: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+emergencyColumns+` FROM emergencies
		 WHERE client_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list emergencies: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Emergency, error) {
		return scanEmergency(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan emergencies: %w", err)
	}
	return result, total, nil
}

func scanEmergency(row pgx.Row) (model.Emergency, error) {
	var (
		e    model.Emergency
		team []byte
	)
	err := row.Scan(&e.ID, &e.ClientID, &e.System, &e.Subsystem, &e.ThreatLevel, &e.Remarks, &e.ClientRSIHandle,
		&e.ClientDiscordID, &e.Status, &e.StatusDescription, &team, &e.IsComplete, &e.Rating, &e.Created, &e.Updated)
	if err != nil {
		return model.Emergency{}, err
	}

	if len(team) > 0 {
		if err := json.Unmarshal(team, &e.RespondingTeam); err != nil {
			return model.Emergency{}, fmt.Errorf("decode responding team: %w", err)
		}
	}
	return e, nil
}
