package main

import (
	"github.com/ALT-F4-LLC/issuesnap/internal/membership"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/render"
	"github.com/spf13/cobra"
)

type indexResult struct {
	Variant  model.ProjectKind `json:"variant"`
	Projects []string          `json:"projects"`
	Issues   *membership.Index `json:"issues"`
}

var indexCmd = &cobra.Command{
	Use:         "index",
	Short:       "Build and print the project membership index",
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		ctx := cmd.Context()

		client, repo, closeSession, err := newSession(cfg, w)
		if err != nil {
			return err
		}
		defer closeSession()

		resolver, err := membership.Select(ctx, client, repo, membership.Mode(cfg.ProjectsAPI))
		if err != nil {
			return cmdErr(err, sourceErrorCode(err))
		}

		ix, err := resolver.Build(ctx, repo)
		if err != nil {
			return cmdErr(err, sourceErrorCode(err))
		}

		result := indexResult{
			Variant:  resolver.Kind(),
			Projects: ix.Projects(),
			Issues:   ix,
		}

		if w.JSONMode {
			w.Success(result, "")
			return nil
		}

		members := make(map[string][]model.IssueNumber)
		for _, n := range ix.Numbers() {
			for _, p := range ix.Lookup(n) {
				members[p] = append(members[p], n)
			}
		}
		w.Success(result, render.RenderIndex(result.Projects, members))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
