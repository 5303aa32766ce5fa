package membership

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

const listProjectsV2Query = `query($owner: String!, $repo: String!, $cursor: String) {
  repository(owner: $owner, name: $repo) {
    projectsV2(first: 100, after: $cursor) {
      nodes {
        id
        number
        title
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`

const listProjectV2ItemsQuery = `query($project: ID!, $cursor: String) {
  node(id: $project) {
    ... on ProjectV2 {
      items(first: 100, after: $cursor) {
        nodes {
          id
          content {
            __typename
            ... on Issue {
              number
              title
              repository {
                nameWithOwner
              }
            }
          }
        }
        pageInfo {
          endCursor
          hasNextPage
        }
      }
    }
  }
}`

type projectV2Node struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ProjectsV2Resolver builds the index from v2 projects by paging the
// repository's projects and then each project's items.
type ProjectsV2Resolver struct {
	fetcher *github.GraphFetcher
	logger  github.Logger
}

// NewProjectsV2Resolver returns a resolver reading v2 projects through
// client's GraphQL endpoint.
func NewProjectsV2Resolver(client *github.Client) *ProjectsV2Resolver {
	return &ProjectsV2Resolver{fetcher: github.NewGraphFetcher(client), logger: client.Logger()}
}

// Kind implements Resolver.
func (r *ProjectsV2Resolver) Kind() model.ProjectKind {
	return model.ProjectKindV2
}

// Build implements Resolver. Failing to list the projects aborts the build;
// failing to list one project's items skips that project.
func (r *ProjectsV2Resolver) Build(ctx context.Context, repo github.Repo) (*Index, error) {
	raw, err := r.fetcher.FetchAll(ctx, listProjectsV2Query,
		map[string]any{"owner": repo.Owner, "repo": repo.Name}, "repository", "projectsV2")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	ix := NewIndex()
	for _, rp := range raw {
		var p projectV2Node
		if err := json.Unmarshal(rp, &p); err != nil {
			return nil, fmt.Errorf("decoding project: %w", err)
		}
		ix.AddProject(p.Title)

		items, err := r.fetcher.FetchAll(ctx, listProjectV2ItemsQuery,
			map[string]any{"project": p.ID}, "node", "items")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("Skipping project %q: %v", p.Title, err)
			continue
		}

		var linked int
		for _, ri := range items {
			var item model.Item
			if err := json.Unmarshal(ri, &item); err != nil {
				return nil, fmt.Errorf("decoding item of project %q: %w", p.Title, err)
			}
			n, ok := item.IssueNumber()
			if !ok || !item.InRepository(repo.String()) {
				continue
			}
			ix.Add(n, p.Title)
			linked++
		}

		r.logger.Info("Project %q: %d items, %d linked issues", p.Title, len(items), linked)
	}

	r.logger.Info("Indexed %d v2 projects covering %d issues", len(raw), ix.Len())
	return ix.Freeze(), nil
}
