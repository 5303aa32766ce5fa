package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// execer abstracts *sql.DB and *sql.Tx for executing statements.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func recordLoadRun(ctx context.Context, ex execer, run *model.LoadRun) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO load_runs (id, table_name, row_count, loaded_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Table, run.Rows, run.LoadedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording load run: %w", err)
	}
	return nil
}

// ListLoadRuns returns recorded loads, most recent first. An empty table
// filter returns runs for every table.
func ListLoadRuns(ctx context.Context, conn *sql.DB, table string, limit int) ([]model.LoadRun, error) {
	query := `SELECT id, table_name, row_count, loaded_at FROM load_runs`
	var args []any
	if table != "" {
		query += ` WHERE table_name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY loaded_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying load runs: %w", err)
	}
	defer rows.Close()

	var runs []model.LoadRun
	for rows.Next() {
		var r model.LoadRun
		var loadedAt string
		if err := rows.Scan(&r.ID, &r.Table, &r.Rows, &loadedAt); err != nil {
			return nil, fmt.Errorf("scanning load run: %w", err)
		}
		t, err := time.Parse(time.RFC3339, loadedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing loaded_at: %w", err)
		}
		r.LoadedAt = t
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating load runs: %w", err)
	}

	return runs, nil
}
