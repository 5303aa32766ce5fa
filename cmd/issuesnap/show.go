package main

import (
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/ALT-F4-LLC/issuesnap/internal/render"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show one loaded issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		conn := getDB(cmd)

		n, err := model.ParseNumber(args[0])
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		cols, err := db.TableColumns(cmd.Context(), conn, cfg.Table)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		if len(cols) == 0 {
			return cmdErr(fmt.Errorf("table %s has not been loaded, run 'issuesnap run' first", cfg.Table), output.ErrNotFound)
		}

		row, err := db.GetRow(cmd.Context(), conn, cfg.Table, n)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return cmdErr(fmt.Errorf("issue %s not found in %s", model.FormatNumber(n), cfg.Table), output.ErrNotFound)
			}
			return cmdErr(err, output.ErrGeneral)
		}

		w.Success(row, render.RenderDetail(row))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
