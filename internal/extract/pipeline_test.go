package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/issuesnap/internal/github"
	"github.com/ALT-F4-LLC/issuesnap/internal/membership"
	"github.com/ALT-F4-LLC/issuesnap/internal/model"
	"github.com/ALT-F4-LLC/issuesnap/internal/warehouse"
)

type fakeLoader struct {
	calls int
	table warehouse.TableRef
	rows  []model.Row
	disp  warehouse.Disposition
	err   error
}

func (l *fakeLoader) Name() string { return "fake" }

func (l *fakeLoader) Load(_ context.Context, table warehouse.TableRef, rows []model.Row, disp warehouse.Disposition) (*model.LoadRun, error) {
	l.calls++
	l.table, l.rows, l.disp = table, rows, disp
	if l.err != nil {
		return nil, l.err
	}
	return &model.LoadRun{ID: "job-1", Table: table.String(), Rows: len(rows)}, nil
}

type stubResolver struct {
	index *membership.Index
	err   error
	calls int
}

func (r *stubResolver) Kind() model.ProjectKind { return model.ProjectKindV2 }

func (r *stubResolver) Build(context.Context, github.Repo) (*membership.Index, error) {
	r.calls++
	return r.index, r.err
}

const issueTmpl = `{"id": %d, "number": %d, "title": "Issue %d", "state": "open",
	"created_at": "2021-03-04T05:06:07Z", "updated_at": "2021-03-04T05:06:07Z",
	"labels": [{"name": "bug"}], "assignees": [], "html_url": "https://github.com/o/r/issues/%d"}`

const pullTmpl = `{"id": %d, "number": %d, "title": "PR", "state": "open",
	"created_at": "2021-03-04T05:06:07Z", "updated_at": "2021-03-04T05:06:07Z",
	"pull_request": {"url": "x"}}`

func issueJSON(n int) string { return fmt.Sprintf(issueTmpl, 1000+n, n, n, n) }
func pullJSON(n int) string  { return fmt.Sprintf(pullTmpl, 1000+n, n) }

// repoServer serves fixed pages of a REST listing keyed by path then page
// number; unlisted pages are empty arrays.
func repoServer(t *testing.T, pages map[string][]string) *github.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		byPage, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var page int
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		if page < 1 || page > len(byPage) {
			w.Write([]byte("[]"))
			return
		}
		w.Write([]byte(byPage[page-1]))
	}))
	t.Cleanup(srv.Close)
	return github.NewClient(github.ClientConfig{BaseURL: srv.URL, Token: "t"}, srv.Client(), nil)
}

func frozenIndex(entries map[model.IssueNumber][]string) *membership.Index {
	ix := membership.NewIndex()
	for n, names := range entries {
		for _, name := range names {
			ix.Add(n, name)
		}
	}
	return ix.Freeze()
}

func Test_Pipeline_EndToEndClassic(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	client := repoServer(t, map[string][]string{
		"/repos/o/r/projects":        {`[{"id": 1, "name": "Sprint 7"}]`},
		"/projects/1/columns":        {`[{"id": 10, "name": "Todo"}]`},
		"/projects/columns/10/cards": {`[{"id": 100, "content_url": "https://api.github.com/repos/o/r/issues/42"}]`},
		"/repos/o/r/issues": {
			"[" + issueJSON(42) + "," + pullJSON(43) + "]",
			"[" + issueJSON(7) + "]",
		},
	})

	loader := &fakeLoader{}
	p := &Pipeline{
		Client:   client,
		Resolver: membership.NewClassicResolver(client),
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
		Table:    warehouse.TableRef{Project: "p", Dataset: "d", Table: "ISSUE"},
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, loader.calls)
	assert.Equal(t, warehouse.FullRefresh, loader.disp)
	assert.Equal(t, "p.d.ISSUE", loader.table.String())
	require.Len(t, loader.rows, 2)

	assert.Equal(t, model.IssueNumber(42), loader.rows[0].IssueID)
	assert.Equal(t, []string{"Sprint 7"}, loader.rows[0].Projects)
	assert.Equal(t, model.IssueNumber(7), loader.rows[1].IssueID)
	assert.Nil(t, loader.rows[1].Projects)

	assert.Equal(t, model.ProjectKindClassic, res.Variant)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, 1, res.SkippedPullRequests)
	assert.Equal(t, 1, res.IndexSize)
	assert.Equal(t, []string{"Sprint 7"}, res.Projects)
	assert.Equal(t, "fake", res.Warehouse)
	assert.Equal(t, "job-1", res.Load.ID)
	assert.NotEmpty(t, res.RunID)
}

func Test_Pipeline_EmptyListingAbortsBeforeLoad(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	client := repoServer(t, map[string][]string{
		"/repos/o/r/issues": {"[" + pullJSON(1) + "]"},
	})

	loader := &fakeLoader{}
	p := &Pipeline{
		Client:   client,
		Resolver: &stubResolver{index: frozenIndex(nil)},
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
		Table:    warehouse.TableRef{Table: "ISSUE"},
	}

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrNoRows)
	assert.Equal(t, 0, loader.calls)
}

func Test_Pipeline_IndexFailureStopsBeforeIssues(t *testing.T) {
	var issueRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issueRequests++
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)
	client := github.NewClient(github.ClientConfig{BaseURL: srv.URL}, srv.Client(), nil)

	repo := github.Repo{Owner: "o", Name: "r"}
	resolver := &stubResolver{err: errors.New("graphql: 401")}
	loader := &fakeLoader{}
	p := &Pipeline{
		Client:   client,
		Resolver: resolver,
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
	}

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building project index")
	assert.Equal(t, 0, issueRequests)
	assert.Equal(t, 0, loader.calls)
}

func Test_Pipeline_TimestampErrorIsFatal(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	bad := strings.Replace(issueJSON(5), `"updated_at": "2021-03-04T05:06:07Z"`, `"updated_at": "soon"`, 1)
	client := repoServer(t, map[string][]string{
		"/repos/o/r/issues": {"[" + issueJSON(4) + "," + bad + "]"},
	})

	loader := &fakeLoader{}
	p := &Pipeline{
		Client:   client,
		Resolver: &stubResolver{index: frozenIndex(nil)},
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
	}

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrTimestamp)
	assert.Contains(t, err.Error(), "#5")
	assert.Equal(t, 0, loader.calls)
}

func Test_Pipeline_DryRunSkipsLoad(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	client := repoServer(t, map[string][]string{
		"/repos/o/r/issues": {"[" + issueJSON(1) + "]"},
	})

	loader := &fakeLoader{}
	resolver := &stubResolver{index: frozenIndex(map[model.IssueNumber][]string{1: {"Roadmap"}})}
	p := &Pipeline{
		Client:   client,
		Resolver: resolver,
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
		DryRun:   true,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, loader.calls)
	assert.Equal(t, 1, resolver.calls)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"Roadmap"}, res.Rows[0].Projects)
	assert.Nil(t, res.Load)
}

func Test_Pipeline_ConfirmDeclined(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	client := repoServer(t, map[string][]string{
		"/repos/o/r/issues": {"[" + issueJSON(1) + "]"},
	})

	loader := &fakeLoader{}
	var askedRows int
	p := &Pipeline{
		Client:   client,
		Resolver: &stubResolver{index: frozenIndex(nil)},
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   loader,
		Confirm: func(_ context.Context, _ warehouse.TableRef, rows int) (bool, error) {
			askedRows = rows
			return false, nil
		},
	}

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, askedRows)
	assert.Equal(t, 0, loader.calls)
}

func Test_Pipeline_SearchListing(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, github.SearchIssuesPath, r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte(`{"items": []}`))
			return
		}
		w.Write([]byte(`{"total_count": 1, "items": [` + issueJSON(3) + `]}`))
	}))
	t.Cleanup(srv.Close)
	client := github.NewClient(github.ClientConfig{BaseURL: srv.URL}, srv.Client(), nil)

	loader := &fakeLoader{}
	p := &Pipeline{
		Client:   client,
		Resolver: &stubResolver{index: frozenIndex(nil)},
		Repo:     repo,
		Listing:  github.SearchIssues(repo, "label:bug"),
		Loader:   loader,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "repo:o/r is:issue label:bug", gotQuery)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, 1, loader.calls)
}

func Test_Pipeline_LoaderErrorPropagates(t *testing.T) {
	repo := github.Repo{Owner: "o", Name: "r"}
	client := repoServer(t, map[string][]string{
		"/repos/o/r/issues": {"[" + issueJSON(1) + "]"},
	})

	p := &Pipeline{
		Client:   client,
		Resolver: &stubResolver{index: frozenIndex(nil)},
		Repo:     repo,
		Listing:  github.RepoIssues(repo),
		Loader:   &fakeLoader{err: warehouse.ErrSchemaMismatch},
		Table:    warehouse.TableRef{Table: "ISSUE"},
	}

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, warehouse.ErrSchemaMismatch)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "ISSUE", le.Table)
}
