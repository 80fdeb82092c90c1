package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

//go:embed migrations/002_block_reports.up.sql
var blockReportsSQL string

var requiredTables = []string{
	"persons",
	"refresh_tokens",
	"emergencies",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasTables(ctx, requiredTables)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = db.hasTables(ctx, requiredTables)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	// 002: block reports, added after the first dev databases existed.
	if err := db.applyBlockReports(ctx); err != nil {
		return fmt.Errorf("apply block reports migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

func (db *DB) applyBlockReports(ctx context.Context) error {
	exists, err := db.hasTables(ctx, []string{"block_reports"})
	if err != nil {
		return fmt.Errorf("check block_reports table: %w", err)
	}
	if exists {
		return nil
	}

	slog.Info("applying block reports migration (002)")
	if _, err := db.Pool.Exec(ctx, blockReportsSQL); err != nil {
		return fmt.Errorf("exec block reports SQL: %w", err)
	}

	return nil
}

func (db *DB) hasTables(ctx context.Context, tables []string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, tables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(tables), nil
}
