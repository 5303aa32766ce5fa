package membership

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// Mode selects which project API generation a run reads memberships from.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeV2      Mode = "v2"
	ModeAuto    Mode = "auto"
)

var validModes = []Mode{ModeClassic, ModeV2, ModeAuto}

// ValidateMode returns an error if m is not a recognized mode.
func ValidateMode(m Mode) error {
	for _, v := range validModes {
		if m == v {
			return nil
		}
	}
	return fmt.Errorf("invalid projects API %q: must be one of %v", m, validModes)
}

// Resolver builds a membership index for a repository.
type Resolver interface {
	// Kind reports which project board generation the resolver reads.
	Kind() model.ProjectKind
	// Build walks every project of repo and returns a frozen index.
	Build(ctx context.Context, repo github.Repo) (*Index, error)
}

// Select returns the resolver for mode. ModeAuto probes the classic projects
// endpoint once: a success status selects the classic resolver and anything
// else selects the v2 resolver.
func Select(ctx context.Context, client *github.Client, repo github.Repo, mode Mode) (Resolver, error) {
	switch mode {
	case ModeClassic:
		return NewClassicResolver(client), nil
	case ModeV2:
		return NewProjectsV2Resolver(client), nil
	case ModeAuto:
		code, err := client.Status(ctx, classicProjectsPath(repo), url.Values{"per_page": {"1"}}, github.MediaTypeClassicProjects)
		if err != nil {
			return nil, fmt.Errorf("probing classic projects: %w", err)
		}
		if code == http.StatusOK {
			client.Logger().Info("Classic projects available for %s", repo)
			return NewClassicResolver(client), nil
		}
		client.Logger().Info("Classic projects unavailable for %s (status %d), using projects v2", repo, code)
		return NewProjectsV2Resolver(client), nil
	default:
		return nil, ValidateMode(mode)
	}
}
