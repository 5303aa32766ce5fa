package main

import (
	"fmt"

	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/ALT-F4-LLC/issuesnap/internal/render"
	"github.com/spf13/cobra"
)

type listResult struct {
	Rows  []*model.Row `json:"rows"`
	Total int          `json:"total"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List issues from the last load",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		conn := getDB(cmd)
		ctx := cmd.Context()

		states, _ := cmd.Flags().GetStringSlice("state")
		labels, _ := cmd.Flags().GetStringSlice("label")
		project, _ := cmd.Flags().GetString("project")
		noProject, _ := cmd.Flags().GetBool("no-project")
		assignee, _ := cmd.Flags().GetString("assignee")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		for _, s := range states {
			if err := model.ValidateState(model.State(s)); err != nil {
				return cmdErr(err, output.ErrValidation)
			}
		}
		if project != "" && noProject {
			return cmdErr(fmt.Errorf("--project and --no-project are mutually exclusive"), output.ErrValidation)
		}

		if err := db.ValidateTableName(cfg.Table); err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		cols, err := db.TableColumns(ctx, conn, cfg.Table)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		if len(cols) == 0 {
			w.Success(listResult{Rows: []*model.Row{}}, render.RenderRows(nil))
			return nil
		}

		rows, total, err := db.ListRows(ctx, conn, cfg.Table, db.ListOptions{
			States:    states,
			Labels:    labels,
			Project:   project,
			NoProject: noProject,
			Assignee:  assignee,
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			return cmdErr(fmt.Errorf("listing issues: %w", err), output.ErrGeneral)
		}

		result := listResult{Rows: rows, Total: total}
		if w.JSONMode {
			w.Success(result, "")
			return nil
		}

		msg := render.RenderRows(rows)
		if len(rows) > 0 && total > len(rows) {
			msg += fmt.Sprintf("\nShowing %d of %d issues.", len(rows), total)
		}
		w.Success(result, msg)

		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceP("state", "s", nil, "Filter by state (open, closed)")
	listCmd.Flags().StringSliceP("label", "l", nil, "Filter by label (repeatable, AND)")
	listCmd.Flags().StringP("project", "p", "", "Filter by project board name")
	listCmd.Flags().Bool("no-project", false, "Only issues on no project board")
	listCmd.Flags().StringP("assignee", "a", "", "Filter by assignee login")
	listCmd.Flags().Int("limit", 50, "Maximum number of issues to show")
	listCmd.Flags().Int("offset", 0, "Number of issues to skip")
	rootCmd.AddCommand(listCmd)
}
