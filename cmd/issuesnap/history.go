package main

import (
	"fmt"

	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/ALT-F4-LLC/issuesnap/internal/render"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded loads into the local warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getDB(cmd)

		table, _ := cmd.Flags().GetString("table")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := db.ListLoadRuns(cmd.Context(), conn, table, limit)
		if err != nil {
			return cmdErr(fmt.Errorf("listing load runs: %w", err), output.ErrGeneral)
		}
		if runs == nil {
			runs = []model.LoadRun{}
		}

		w.Success(runs, render.RenderLoadRuns(runs))
		return nil
	},
}

func init() {
	historyCmd.Flags().String("table", "", "Only show loads into this table")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
