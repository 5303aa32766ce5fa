// Package warehouse performs full-refresh loads of canonical issue rows into
// an analytical table.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

var (
	ErrSchemaMismatch = db.ErrSchemaMismatch
	ErrTableNotEmpty  = db.ErrTableNotEmpty
	ErrTableMissing   = db.ErrTableMissing
)

// Loader writes a row set into a destination table.
type Loader interface {
	// Name identifies the warehouse backend in logs and run reports.
	Name() string
	// Load replaces or fills table with rows according to disp and blocks
	// until the load has completed.
	Load(ctx context.Context, table TableRef, rows []model.Row, disp Disposition) (*model.LoadRun, error)
}

// CreateDisposition controls whether a missing table is created.
type CreateDisposition int

const (
	CreateIfNeeded CreateDisposition = iota
	CreateNever
)

// WriteDisposition controls what happens to rows already in the table.
type WriteDisposition int

const (
	WriteTruncate WriteDisposition = iota
	WriteEmpty
)

// Disposition pairs the create and write behavior of a load.
type Disposition struct {
	Create CreateDisposition
	Write  WriteDisposition
}

// FullRefresh creates the table when missing and replaces its contents.
var FullRefresh = Disposition{Create: CreateIfNeeded, Write: WriteTruncate}

// TableRef names a destination table as project.dataset.table. Project and
// Dataset are ignored by the SQLite loader.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableRef parses "table", "dataset.table" or "project.dataset.table".
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return TableRef{}, fmt.Errorf("invalid table reference %q", s)
		}
	}

	var ref TableRef
	switch len(parts) {
	case 1:
		ref.Table = parts[0]
	case 2:
		ref.Dataset, ref.Table = parts[0], parts[1]
	case 3:
		ref.Project, ref.Dataset, ref.Table = parts[0], parts[1], parts[2]
	default:
		return TableRef{}, fmt.Errorf("invalid table reference %q: too many parts", s)
	}

	if err := db.ValidateTableName(ref.Table); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

// String returns the dotted form of the reference, omitting empty parts.
func (r TableRef) String() string {
	var parts []string
	for _, p := range []string{r.Project, r.Dataset, r.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
