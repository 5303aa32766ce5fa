package github

import (
	"fmt"
	"net/url"
	"strings"
)

// SearchIssuesPath is the issue search endpoint.
const SearchIssuesPath = "/search/issues"

// IssueListing describes the paginated endpoint an extraction run reads
// issues from.
type IssueListing struct {
	Path    string
	Query   url.Values
	Extract ExtractFunc
}

// RepoIssues lists every issue and pull request of repo, open and closed.
func RepoIssues(repo Repo) IssueListing {
	return IssueListing{
		Path:    fmt.Sprintf("/repos/%s/%s/issues", repo.Owner, repo.Name),
		Query:   url.Values{"state": {"all"}},
		Extract: DecodeArray,
	}
}

// SearchIssues lists issues of repo matching a search filter such as
// "label:bug created:>2024-01-01". The filter is scoped to the repository
// and to issues.
func SearchIssues(repo Repo, filter string) IssueListing {
	terms := []string{"repo:" + repo.String(), "is:issue"}
	if f := strings.TrimSpace(filter); f != "" {
		terms = append(terms, f)
	}
	return IssueListing{
		Path:    SearchIssuesPath,
		Query:   url.Values{"q": {strings.Join(terms, " ")}},
		Extract: DecodeItems,
	}
}
