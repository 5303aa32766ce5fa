package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/issuesnap/internal/config"
	"github.com/ALT-F4-LLC/issuesnap/internal/extract"
	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/membership"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/ALT-F4-LLC/issuesnap/internal/render"
	"github.com/ALT-F4-LLC/issuesnap/internal/warehouse"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

type runResult struct {
	*extract.Result
	Rows []model.Row `json:"rows,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract every issue with its project boards and replace the warehouse table",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		ctx := cmd.Context()

		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if err := cfg.Validate(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		table, err := warehouse.ParseTableRef(cfg.TableName())
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		// Credentials are checked before any request is made.
		var loader warehouse.Loader
		if !dryRun {
			l, closeLoader, err := newLoader(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLoader()
			loader = l
		}

		client, repo, closeSession, err := newSession(cfg, w)
		if err != nil {
			return err
		}
		defer closeSession()

		resolver, err := membership.Select(ctx, client, repo, membership.Mode(cfg.ProjectsAPI))
		if err != nil {
			return cmdErr(err, sourceErrorCode(err))
		}

		listing := github.RepoIssues(repo)
		if cfg.IssueQuery != "" {
			listing = github.SearchIssues(repo, cfg.IssueQuery)
		}

		p := &extract.Pipeline{
			Client:   client,
			Resolver: resolver,
			Repo:     repo,
			Listing:  listing,
			Loader:   loader,
			Table:    table,
			DryRun:   dryRun,
			Logger:   w,
		}
		if !yes && !w.JSONMode {
			p.Confirm = confirmOverwrite
		}

		res, err := p.Run(ctx)
		if err != nil {
			if errors.Is(err, extract.ErrCancelled) {
				w.Info("Cancelled.")
				return nil
			}
			return cmdErr(err, runErrorCode(err))
		}

		result := runResult{Result: res}
		if dryRun {
			result.Rows = res.Rows
		}

		if w.JSONMode {
			w.Success(result, "")
			return nil
		}

		report, err := render.RenderRunReport(res)
		if err != nil {
			w.Warn("rendering report: %v", err)
		}
		if dryRun {
			rows := make([]*model.Row, len(res.Rows))
			for i := range res.Rows {
				rows[i] = &res.Rows[i]
			}
			report = render.RenderRows(rows) + "\n\n" + report
		}
		w.Success(result, report)

		return nil
	},
}

// newLoader returns the configured warehouse loader and a func releasing it.
func newLoader(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (warehouse.Loader, func(), error) {
	switch cfg.Warehouse {
	case config.WarehouseBigQuery:
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, nil, cmdErr(err, output.ErrCredential)
		}
		l, err := warehouse.NewBigQueryLoader(ctx, cfg.GCloudProject, creds)
		if err != nil {
			return nil, nil, cmdErr(err, output.ErrCredential)
		}
		return l, func() { l.Close() }, nil
	default:
		return warehouse.NewSQLiteLoader(getDB(cmd)), func() {}, nil
	}
}

func confirmOverwrite(_ context.Context, table warehouse.TableRef, rows int) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("This will replace ALL rows of %s with %d extracted issues. Continue?", table, rows)).
				Affirmative("Yes, replace the table").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, cmdErr(fmt.Errorf("interactive form failed: %w", err), output.ErrGeneral)
	}
	return confirmed, nil
}

// runErrorCode maps a pipeline failure to its error code.
func runErrorCode(err error) output.ErrorCode {
	switch {
	case errors.Is(err, extract.ErrNoRows):
		return output.ErrEmptyResult
	case errors.Is(err, extract.ErrTimestamp), errors.Is(err, github.ErrGraphQL):
		return output.ErrSource
	}

	var ce *CmdError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var le *extract.LoadError
	if errors.As(err, &le) {
		return output.ErrWarehouse
	}
	return sourceErrorCode(err)
}

func init() {
	runCmd.Flags().BoolP("yes", "y", false, "Replace the table without asking for confirmation")
	runCmd.Flags().Bool("dry-run", false, "Extract and print rows without loading them")
	rootCmd.AddCommand(runCmd)
}
