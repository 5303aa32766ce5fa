package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `query($owner: String!, $cursor: String) { repository(owner: $owner) { projectsV2(first: 2, after: $cursor) { nodes { id } pageInfo { endCursor hasNextPage } } } }`

func decodeGraphRequest(t *testing.T, r *http.Request) graphRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req graphRequest
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func Test_GraphFetcher_FollowsCursorUntilLastPage(t *testing.T) {
	t.Parallel()
	var requests atomic.Int32
	var (
		mu      sync.Mutex
		cursors []any
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, graphqlPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		n := requests.Add(1)

		req := decodeGraphRequest(t, r)
		assert.Equal(t, "octo", req.Variables["owner"])
		mu.Lock()
		cursors = append(cursors, req.Variables["cursor"])
		mu.Unlock()

		hasNext := n < 3
		fmt.Fprintf(w, `{"data": {"repository": {"projectsV2": {
			"nodes": [{"id": "P%d-a"}, {"id": "P%d-b"}],
			"pageInfo": {"endCursor": "c%d", "hasNextPage": %v}
		}}}}`, n, n, n, hasNext)
	})

	nodes, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument,
		map[string]any{"owner": "octo"}, "repository", "projectsV2")
	require.NoError(t, err)
	assert.EqualValues(t, 3, requests.Load())
	assert.Len(t, nodes, 6)
	mu.Lock()
	assert.Equal(t, []any{nil, "c1", "c2"}, cursors)
	mu.Unlock()

	var last struct{ ID string }
	require.NoError(t, json.Unmarshal(nodes[5], &last))
	assert.Equal(t, "P3-b", last.ID)
}

func Test_GraphFetcher_EdgesShape(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"node": {"items": {
			"edges": [{"node": {"id": "I1"}}, {"node": {"id": "I2"}}],
			"pageInfo": {"endCursor": "x", "hasNextPage": false}
		}}}}`))
	})

	nodes, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument, nil, "node", "items")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func Test_GraphFetcher_NonSuccessStatusIsFatal(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	nodes, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument, nil, "repository", "projectsV2")
	require.Error(t, err)
	assert.Nil(t, nodes)

	var se *StatusError
	assert.ErrorAs(t, err, &se)
}

func Test_GraphFetcher_ErrorsArrayIsFatal(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": null, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve to a Repository"}]}`))
	})

	_, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument, nil, "repository", "projectsV2")
	require.ErrorIs(t, err, ErrGraphQL)
	assert.Contains(t, err.Error(), "Could not resolve")
}

func Test_GraphFetcher_NullConnectionIsFatal(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"repository": null}}`))
	})

	_, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument, nil, "repository", "projectsV2")
	assert.ErrorIs(t, err, ErrGraphQL)
}

func Test_GraphFetcher_MissingEndCursor(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"repository": {"projectsV2": {"nodes": [], "pageInfo": {"hasNextPage": true}}}}}`))
	})

	_, err := NewGraphFetcher(client).FetchAll(context.Background(), testDocument, nil, "repository", "projectsV2")
	assert.ErrorIs(t, err, ErrGraphQL)
}

func Test_GraphFetcher_StopPolicyKeepsPartial(t *testing.T) {
	t.Parallel()
	var requests atomic.Int32
	client, logger := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data": {"repository": {"projectsV2": {
			"nodes": [{"id": "A"}],
			"pageInfo": {"endCursor": "c1", "hasNextPage": true}
		}}}}`))
	})

	f := NewGraphFetcher(client)
	f.Policy = StopAndReturnPartial
	nodes, err := f.FetchAll(context.Background(), testDocument, nil, "repository", "projectsV2")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Len(t, logger.warns, 1)
}
