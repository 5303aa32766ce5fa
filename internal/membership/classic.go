package membership

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// classicProject is the REST shape of a classic project.
type classicProject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func classicProjectsPath(repo github.Repo) string {
	return fmt.Sprintf("/repos/%s/%s/projects", repo.Owner, repo.Name)
}

// ClassicResolver builds the index from classic projects by walking
// projects, then columns, then cards. Every level is paginated on its own and
// a failed page ends that level early without failing the build.
type ClassicResolver struct {
	fetcher *github.PagedFetcher
	logger  github.Logger
}

// NewClassicResolver returns a resolver reading classic projects through
// client.
func NewClassicResolver(client *github.Client) *ClassicResolver {
	f := github.NewPagedFetcher(client)
	f.Accept = github.MediaTypeClassicProjects
	return &ClassicResolver{fetcher: f, logger: client.Logger()}
}

// Kind implements Resolver.
func (r *ClassicResolver) Kind() model.ProjectKind {
	return model.ProjectKindClassic
}

// Build implements Resolver.
func (r *ClassicResolver) Build(ctx context.Context, repo github.Repo) (*Index, error) {
	ix := NewIndex()

	projects, err := github.FetchInto[classicProject](ctx, r.fetcher, classicProjectsPath(repo), url.Values{"state": {"all"}})
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	for _, p := range projects {
		ix.AddProject(p.Name)

		columns, err := github.FetchInto[model.Column](ctx, r.fetcher, fmt.Sprintf("/projects/%d/columns", p.ID), nil)
		if err != nil {
			return nil, fmt.Errorf("listing columns of project %q: %w", p.Name, err)
		}

		var cardCount int
		for _, col := range columns {
			cards, err := github.FetchInto[model.Card](ctx, r.fetcher, fmt.Sprintf("/projects/columns/%d/cards", col.ID), nil)
			if err != nil {
				return nil, fmt.Errorf("listing cards of column %q in project %q: %w", col.Name, p.Name, err)
			}

			for _, card := range cards {
				n, ok := card.IssueNumber()
				if !ok {
					continue
				}
				ix.Add(n, p.Name)
				cardCount++
			}
		}

		r.logger.Info("Project %q: %d columns, %d issue cards", p.Name, len(columns), cardCount)
	}

	r.logger.Info("Indexed %d classic projects covering %d issues", len(projects), ix.Len())
	return ix.Freeze(), nil
}
