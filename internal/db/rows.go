package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// safeIdentifier matches table names that may be interpolated into SQL.
var safeIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTableMissing is returned when the target table does not exist and
	// creation was not requested.
	ErrTableMissing = errors.New("table does not exist")
	// ErrTableNotEmpty is returned when a non-truncating load targets a
	// table that already holds rows.
	ErrTableNotEmpty = errors.New("table is not empty")
	// ErrSchemaMismatch is returned when an existing table lacks a column
	// the row shape needs.
	ErrSchemaMismatch = errors.New("table schema does not match")
)

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}

// queryer abstracts *sql.DB and *sql.Tx for read queries.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const rowColumnsDDL = `
	issue_id     INTEGER NOT NULL,
	issue_title  TEXT NOT NULL,
	created_time TEXT,
	updated_time TEXT,
	labels       TEXT NOT NULL DEFAULT '[]',
	assignees    TEXT NOT NULL DEFAULT '[]',
	state        TEXT NOT NULL,
	state_reason TEXT,
	closed_time  TEXT,
	projects     TEXT,
	issue_url    TEXT
`

// LoadOptions controls how LoadRows treats the target table.
type LoadOptions struct {
	CreateIfMissing bool // create the table when it does not exist
	Truncate        bool // replace existing rows; otherwise require an empty table
}

// ValidateTableName returns an error if name cannot be used as a table name.
func ValidateTableName(name string) error {
	if !safeIdentifier.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// LoadRows writes rows into table inside a single transaction and records
// the load in load_runs. Either every row is written and the run recorded,
// or nothing changes.
func LoadRows(ctx context.Context, conn *sql.DB, table string, rows []model.Row, opts LoadOptions) (*model.LoadRun, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	columns, err := tableColumns(ctx, tx, table)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		if !opts.CreateIfMissing {
			return nil, fmt.Errorf("%w: %s", ErrTableMissing, table)
		}
		if err := createRowTable(ctx, tx, table); err != nil {
			return nil, err
		}
	} else if missing := missingColumns(columns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s lacks columns %s", ErrSchemaMismatch, table, strings.Join(missing, ", "))
	}

	if opts.Truncate {
		// Safe: table validated by ValidateTableName.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, table)); err != nil {
			return nil, fmt.Errorf("truncating %s: %w", table, err)
		}
	} else {
		var count int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting rows in %s: %w", table, err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: %s has %d rows", ErrTableNotEmpty, table, count)
		}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO "%s" (%s) VALUES (%s)`,
		table, strings.Join(model.RowColumns, ", "), makePlaceholders(len(model.RowColumns)),
	))
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		args, err := rowArgs(r)
		if err != nil {
			return nil, fmt.Errorf("encoding issue %s: %w", model.FormatNumber(r.IssueID), err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("inserting issue %s: %w", model.FormatNumber(r.IssueID), err)
		}
	}

	run := &model.LoadRun{
		ID:       uuid.NewString(),
		Table:    table,
		Rows:     len(rows),
		LoadedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := recordLoadRun(ctx, tx, run); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return run, nil
}

// TableColumns returns the column names of table, or nil if it does not exist.
func TableColumns(ctx context.Context, conn *sql.DB, table string) ([]string, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return tableColumns(ctx, conn, table)
}

func tableColumns(ctx context.Context, q queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func missingColumns(have []string) []string {
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[strings.ToLower(c)] = true
	}
	var missing []string
	for _, c := range model.RowColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func createRowTable(ctx context.Context, tx *sql.Tx, table string) error {
	ddl := fmt.Sprintf(`CREATE TABLE "%s" (%s);
CREATE INDEX "idx_%s_issue_id" ON "%s"(issue_id);`, table, rowColumnsDDL, strings.ToLower(table), table)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

func rowArgs(r model.Row) ([]any, error) {
	labels, err := json.Marshal(nonNil(r.Labels))
	if err != nil {
		return nil, err
	}
	assignees, err := json.Marshal(nonNil(r.Assignees))
	if err != nil {
		return nil, err
	}
	var projects any
	if r.Projects != nil {
		b, err := json.Marshal(r.Projects)
		if err != nil {
			return nil, err
		}
		projects = string(b)
	}

	return []any{
		int(r.IssueID),
		r.Title,
		nullString(r.CreatedTime),
		nullString(r.UpdatedTime),
		string(labels),
		string(assignees),
		string(r.State),
		nullString(r.StateReason),
		nullString(r.ClosedTime),
		projects,
		nullIfEmpty(r.URL),
	}, nil
}

// ListOptions holds filtering and pagination options for ListRows.
type ListOptions struct {
	States    []string // filter by state (multiple = OR)
	Labels    []string // filter by label name (multiple = AND)
	Project   string   // filter by project name
	Assignee  string   // filter by assignee login
	NoProject bool     // only rows with no project
	Limit     int      // max results
	Offset    int      // for pagination
}

// ListRows returns rows of table matching opts, newest update first, along
// with the total count of matching rows ignoring Limit and Offset.
func ListRows(ctx context.Context, conn *sql.DB, table string, opts ListOptions) ([]*model.Row, int, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, 0, err
	}

	var (
		where []string
		args  []any
	)

	if len(opts.States) > 0 {
		where = append(where, fmt.Sprintf("state IN (%s)", makePlaceholders(len(opts.States))))
		for _, s := range opts.States {
			args = append(args, s)
		}
	}
	for _, l := range opts.Labels {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(labels) WHERE value = ?)")
		args = append(args, l)
	}
	if opts.Assignee != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(assignees) WHERE value = ?)")
		args = append(args, opts.Assignee)
	}
	if opts.Project != "" {
		where = append(where, "projects IS NOT NULL AND EXISTS (SELECT 1 FROM json_each(projects) WHERE value = ?)")
		args = append(args, opts.Project)
	}
	if opts.NoProject {
		where = append(where, "projects IS NULL")
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM "%s" %s`, table, whereSQL), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting rows: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM "%s" %s ORDER BY updated_time DESC, issue_id DESC`,
		strings.Join(model.RowColumns, ", "), table, whereSQL)
	mainArgs := append([]any(nil), args...)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		mainArgs = append(mainArgs, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			mainArgs = append(mainArgs, opts.Offset)
		}
	}

	rows, err := conn.QueryContext(ctx, query, mainArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Row, 0)
	for rows.Next() {
		r, err := scanRowFrom(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating rows: %w", err)
	}

	return result, total, nil
}

// GetRow returns the row for issue n in table.
func GetRow(ctx context.Context, conn *sql.DB, table string, n model.IssueNumber) (*model.Row, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM "%s" WHERE issue_id = ? LIMIT 1`, strings.Join(model.RowColumns, ", "), table,
	), int(n))

	r, err := scanRowFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	return r, nil
}

// CountRows returns the number of rows in table, or 0 when it does not exist.
func CountRows(ctx context.Context, conn *sql.DB, table string) (int, error) {
	cols, err := TableColumns(ctx, conn, table)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, nil
	}

	var count int
	if err := conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", table, err)
	}
	return count, nil
}

// --- helpers ---

func scanRowFrom(s scanner) (*model.Row, error) {
	var (
		r                                model.Row
		id                               int
		created, updated, reason, closed sql.NullString
		labels, assignees, state         string
		projects, url                    sql.NullString
	)

	if err := s.Scan(&id, &r.Title, &created, &updated, &labels, &assignees,
		&state, &reason, &closed, &projects, &url); err != nil {
		return nil, err
	}

	r.IssueID = model.IssueNumber(id)
	r.CreatedTime = stringPtr(created)
	r.UpdatedTime = stringPtr(updated)
	r.State = model.State(state)
	r.StateReason = stringPtr(reason)
	r.ClosedTime = stringPtr(closed)
	r.URL = url.String

	if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
		return nil, fmt.Errorf("decoding labels: %w", err)
	}
	if err := json.Unmarshal([]byte(assignees), &r.Assignees); err != nil {
		return nil, fmt.Errorf("decoding assignees: %w", err)
	}
	if projects.Valid {
		if err := json.Unmarshal([]byte(projects.String), &r.Projects); err != nil {
			return nil, fmt.Errorf("decoding projects: %w", err)
		}
	}

	return &r, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
