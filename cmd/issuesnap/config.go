package main

import (
	"fmt"
	"os"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/ALT-F4-LLC/issuesnap/internal/config"
	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/spf13/cobra"
)

type configInfo struct {
	config.Settings
	DBPath        string `json:"db_path"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	ConfigFile    string `json:"config_file,omitempty"`
	PathEnvSet    bool   `json:"issuesnap_path_set"`
	Valid         bool   `json:"valid"`
	Problem       string `json:"problem,omitempty"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display the resolved issuesnap configuration",
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{
			Settings:   cfg.Redacted(),
			DBPath:     cfg.DBPath,
			ConfigFile: cfg.ConfigFile,
			PathEnvSet: cfg.EnvVarSet,
			Valid:      true,
		}
		if err := cfg.Validate(); err != nil {
			info.Valid = false
			info.Problem = err.Error()
		}

		stat, err := os.Stat(cfg.DBPath)
		switch {
		case err == nil:
			info.DBSizeBytes = stat.Size()
			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return cmdErr(fmt.Errorf("opening database: %w", err), output.ErrGeneral)
			}
			defer conn.Close()

			v, err := db.SchemaVersion(conn)
			if err != nil {
				return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrGeneral)
			}
			info.SchemaVersion = v
		case !os.IsNotExist(err):
			return cmdErr(fmt.Errorf("reading database file: %w", err), output.ErrGeneral)
		}

		w.Success(info, formatConfigHuman(info))
		return nil
	},
}

func formatValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func formatConfigHuman(info configInfo) string {
	var b strings.Builder

	dbPath := info.DBPath
	if info.SchemaVersion == 0 {
		dbPath += " (not created yet)"
	}
	fmt.Fprintf(&b, "Database path:   %s\n", dbPath)
	if info.SchemaVersion > 0 {
		fmt.Fprintf(&b, "Database size:   %s\n", humanize.IBytes(uint64(info.DBSizeBytes)))
		fmt.Fprintf(&b, "Schema version:  %d\n", info.SchemaVersion)
	}
	fmt.Fprintf(&b, "Config file:     %s\n", formatValue(info.ConfigFile))
	fmt.Fprintf(&b, "Service URL:     %s\n", info.ServiceURL)
	fmt.Fprintf(&b, "Repository:      %s/%s\n", formatValue(info.Owner), formatValue(info.Repo))
	fmt.Fprintf(&b, "GitHub token:    %s\n", formatValue(info.Token))
	fmt.Fprintf(&b, "Projects API:    %s\n", info.ProjectsAPI)
	fmt.Fprintf(&b, "Issue query:     %s\n", formatValue(info.IssueQuery))
	fmt.Fprintf(&b, "Warehouse:       %s\n", info.Warehouse)
	if info.Warehouse == config.WarehouseBigQuery {
		fmt.Fprintf(&b, "GCloud project:  %s\n", formatValue(info.GCloudProject))
		fmt.Fprintf(&b, "GCloud dataset:  %s\n", formatValue(info.GCloudDataset))
		fmt.Fprintf(&b, "GCloud account:  %s\n", formatValue(info.GCloudAccount))
	}
	fmt.Fprintf(&b, "Table:           %s", info.Table)
	if !info.Valid {
		fmt.Fprintf(&b, "\nProblems:        %s", info.Problem)
	}

	return b.String()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
