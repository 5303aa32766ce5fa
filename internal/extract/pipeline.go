package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/membership"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/warehouse"
)

var (
	// ErrNoRows is returned when the listing produced no issue rows. The
	// destination table is left untouched.
	ErrNoRows = errors.New("no issues extracted")
	// ErrCancelled is returned when the Confirm hook declines the load.
	ErrCancelled = errors.New("load cancelled")
)

// LoadError reports a failure of the warehouse load step.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string { return fmt.Sprintf("loading %s: %v", e.Table, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// ConfirmFunc is consulted after extraction and before the destructive load.
type ConfirmFunc func(ctx context.Context, table warehouse.TableRef, rows int) (bool, error)

// Pipeline extracts every issue of a repository, annotates it with project
// membership, and loads the result into the warehouse.
type Pipeline struct {
	Client   *github.Client
	Resolver membership.Resolver
	Repo     github.Repo
	Listing  github.IssueListing
	Loader   warehouse.Loader
	Table    warehouse.TableRef
	DryRun   bool
	Confirm  ConfirmFunc
	Logger   github.Logger
}

// Result summarizes one pipeline run.
type Result struct {
	RunID               string            `json:"run_id"`
	Repo                string            `json:"repo"`
	Variant             model.ProjectKind `json:"variant"`
	Projects            []string          `json:"projects"`
	IndexSize           int               `json:"index_size"`
	Pages               int               `json:"pages"`
	RowCount            int               `json:"rows"`
	SkippedPullRequests int               `json:"skipped_pull_requests"`
	Table               string            `json:"table"`
	Warehouse           string            `json:"warehouse,omitempty"`
	DryRun              bool              `json:"dry_run"`
	Load                *model.LoadRun    `json:"load,omitempty"`
	StartedAt           time.Time         `json:"started_at"`
	Duration            time.Duration     `json:"duration_ns"`
	LoadDuration        time.Duration     `json:"load_duration_ns"`
	Rows                []model.Row       `json:"-"`
}

// Run executes the pipeline. The membership index is built once before any
// issue is fetched. A run that produces no rows fails with ErrNoRows before
// the loader is called.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = p.Client.Logger()
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Repo:      p.Repo.String(),
		Variant:   p.Resolver.Kind(),
		Table:     p.Table.String(),
		DryRun:    p.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if p.Loader != nil {
		res.Warehouse = p.Loader.Name()
	}

	logger.Info("Building %s project index for %s", res.Variant, res.Repo)
	index, err := p.Resolver.Build(ctx, p.Repo)
	if err != nil {
		return nil, fmt.Errorf("building project index: %w", err)
	}
	res.Projects = index.Projects()
	res.IndexSize = index.Len()
	logger.Info("Indexed %d issues across %d projects", res.IndexSize, len(res.Projects))

	rows, err := p.collect(ctx, index, res)
	if err != nil {
		return nil, err
	}
	res.Rows = rows
	res.RowCount = len(rows)
	logger.Info("Extracted %d issues over %d pages (%d pull requests skipped)", res.RowCount, res.Pages, res.SkippedPullRequests)

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", res.Repo, ErrNoRows)
	}

	if p.DryRun || p.Loader == nil {
		res.Duration = time.Since(res.StartedAt)
		return res, nil
	}

	if p.Confirm != nil {
		ok, err := p.Confirm(ctx, p.Table, len(rows))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCancelled
		}
	}

	loadStart := time.Now()
	run, err := p.Loader.Load(ctx, p.Table, rows, warehouse.FullRefresh)
	if err != nil {
		return nil, &LoadError{Table: res.Table, Err: err}
	}
	res.Load = run
	res.LoadDuration = time.Since(loadStart)
	res.Duration = time.Since(res.StartedAt)
	logger.Info("Loaded %d rows into %s", run.Rows, res.Table)

	return res, nil
}

func (p *Pipeline) collect(ctx context.Context, index *membership.Index, res *Result) ([]model.Row, error) {
	fetcher := github.NewPagedFetcher(p.Client)
	if p.Listing.Extract != nil {
		fetcher.Extract = p.Listing.Extract
	}

	rows := make([]model.Row, 0)
	err := fetcher.Each(ctx, p.Listing.Path, p.Listing.Query, func(page int, items []json.RawMessage) error {
		res.Pages = page
		for _, item := range items {
			var raw model.RawIssue
			if err := json.Unmarshal(item, &raw); err != nil {
				return fmt.Errorf("decoding issue on page %d: %w", page, err)
			}
			row, ok, err := Transform(&raw, index.Lookup)
			if err != nil {
				return fmt.Errorf("transforming issue %s: %w", model.FormatNumber(raw.Number), err)
			}
			if !ok {
				res.SkippedPullRequests++
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
