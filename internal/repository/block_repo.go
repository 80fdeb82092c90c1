package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrunner-portal/internal/model"
)

type BlockRepository struct {
	pool *pgxpool.Pool
}

func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

func (r *BlockRepository) Add(ctx context.Context, report model.BlockReport) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO block_reports (id, rsi_handle, org_sid, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.RSIHandle, report.OrgSID, report.Reason, report.Created)
	if err != nil {
		return fmt.Errorf("add block report: %w", err)
	}
	return nil
}

func (r *BlockRepository) ListByHandle(ctx context.Context, handle string) ([]model.BlockReport, error) {
	return r.list(ctx, `lower(rsi_handle) = lower($1)`, handle)
}

func (r *BlockRepository) ListByOrg(ctx context.Context, orgSID string) ([]model.BlockReport, error) {
	return r.list(ctx, `lower(org_sid) = lower($1)`, orgSID)
}

func (r *BlockRepository) list(ctx context.Context, where string, value string) ([]model.BlockReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, rsi_handle, org_sid, reason, created_at FROM block_reports
		 WHERE `+where+` ORDER BY created_at`, value)
	if err != nil {
		return nil, fmt.Errorf("list block reports: %w", err)
	}

	reports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BlockReport, error) {
		var report model.BlockReport
		err := row.Scan(&report.ID, &report.RSIHandle, &report.OrgSID, &report.Reason, &report.Created)
		return report, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan block reports: %w", err)
	}
	return reports, nil
}
