package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/ALT-F4-LLC/issuesnap/internal/config"
	"github.com/ALT-F4-LLC/issuesnap/internal/db"
	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/output"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	dbKey  contextKey = "db"
	cfgKey contextKey = "cfg"
)

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:     "issuesnap",
	Short:   "Snapshot GitHub issues and their project boards into a warehouse table",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)

		if _, ok := cmd.Annotations["skipDB"]; ok {
			cmd.SetContext(ctx)
			return nil
		}

		conn, err := db.OpenAndMigrate(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		activeDB = conn
		cmd.SetContext(context.WithValue(ctx, dbKey, conn))
		return nil
	},
}

// activeDB is closed by Execute. Cobra skips post-run hooks when a command
// fails, so the connection cannot be released there.
var activeDB *sql.DB

func closeDB() {
	if activeDB != nil {
		activeDB.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

// activeWriter is shared by the running command and Execute so that warnings
// collected in JSON mode reach the final envelope.
var activeWriter *output.Writer

func getWriter(cmd *cobra.Command) *output.Writer {
	if activeWriter == nil {
		jsonMode, _ := cmd.Flags().GetBool("json")
		quietMode, _ := cmd.Flags().GetBool("quiet")
		activeWriter = output.New(jsonMode, quietMode)
	}
	return activeWriter
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getDB(cmd *cobra.Command) *sql.DB {
	conn, _ := cmd.Context().Value(dbKey).(*sql.DB)
	return conn
}

// newSession validates cfg and returns a GitHub client for the configured
// repository. The returned close func releases the HTTP client's idle
// connections and must be called when the command finishes.
func newSession(cfg *config.Config, w *output.Writer) (*github.Client, github.Repo, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, github.Repo{}, nil, cmdErr(err, output.ErrValidation)
	}

	repo, err := github.ParseRepo(cfg.Owner + "/" + cfg.Repo)
	if err != nil {
		return nil, github.Repo{}, nil, cmdErr(err, output.ErrValidation)
	}

	if cfg.Token == "" {
		w.Warn("ISSUESNAP_GITHUB_TOKEN is not set; requests are unauthenticated and heavily rate limited")
	}

	httpClient := &http.Client{}
	client := github.NewClient(github.ClientConfig{BaseURL: cfg.ServiceURL, Token: cfg.Token}, httpClient, w)
	return client, repo, httpClient.CloseIdleConnections, nil
}

// sourceErrorCode classifies errors raised while talking to GitHub.
func sourceErrorCode(err error) output.ErrorCode {
	var se *github.StatusError
	switch {
	case errors.As(err, &se):
		if se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden {
			return output.ErrCredential
		}
		return output.ErrSource
	case errors.Is(err, context.Canceled):
		return output.ErrCancelled
	default:
		return output.ErrSource
	}
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer closeDB()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		w := activeWriter
		if w == nil {
			jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
			quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
			w = output.New(jsonMode, quietMode)
		}

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
