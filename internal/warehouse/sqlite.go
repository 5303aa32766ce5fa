package warehouse

import (
	"context"
	"database/sql"

	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// SQLiteLoader loads rows into the local SQLite warehouse.
type SQLiteLoader struct {
	conn *sql.DB
}

// NewSQLiteLoader returns a loader writing to conn, which must have been
// initialized with db.OpenAndMigrate.
func NewSQLiteLoader(conn *sql.DB) *SQLiteLoader {
	return &SQLiteLoader{conn: conn}
}

func (l *SQLiteLoader) Name() string { return "sqlite" }

// Load writes rows atomically. Either the table holds exactly rows afterwards
// (WriteTruncate) or the load fails and the table is unchanged.
func (l *SQLiteLoader) Load(ctx context.Context, table TableRef, rows []model.Row, disp Disposition) (*model.LoadRun, error) {
	return db.LoadRows(ctx, l.conn, table.Table, rows, db.LoadOptions{
		CreateIfMissing: disp.Create == CreateIfNeeded,
		Truncate:        disp.Write == WriteTruncate,
	})
}
