package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const graphqlPath = "/graphql"

// ErrGraphQL is returned when a GraphQL response carries an errors array or
// does not have the expected shape.
var ErrGraphQL = errors.New("graphql error")

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type graphResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphError    `json:"errors"`
}

type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// connection is a GraphQL connection exposing either nodes or edges.
type connection struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []struct {
		Node json.RawMessage `json:"node"`
	} `json:"edges"`
	PageInfo pageInfo `json:"pageInfo"`
}

func (c *connection) items() []json.RawMessage {
	if len(c.Nodes) > 0 {
		return c.Nodes
	}
	items := make([]json.RawMessage, 0, len(c.Edges))
	for _, e := range c.Edges {
		items = append(items, e.Node)
	}
	return items
}

// GraphFetcher walks a cursor-paginated GraphQL connection. The query
// document must declare a $cursor variable and select pageInfo { endCursor
// hasNextPage } on the connection.
type GraphFetcher struct {
	client *Client
	Policy PageErrorPolicy
}

// NewGraphFetcher returns a fetcher that fails on the first unsuccessful
// request.
func NewGraphFetcher(client *Client) *GraphFetcher {
	return &GraphFetcher{client: client, Policy: Abort}
}

// FetchAll executes document repeatedly, starting with a null cursor and
// advancing to pageInfo.endCursor while hasNextPage is true. path names the
// fields leading from data to the connection, e.g. "repository",
// "projectsV2". It returns the union of every page's nodes.
func (f *GraphFetcher) FetchAll(ctx context.Context, document string, variables map[string]any, path ...string) ([]json.RawMessage, error) {
	vars := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		vars[k] = v
	}
	vars["cursor"] = nil

	var all []json.RawMessage
	for page := 1; ; page++ {
		conn, err := f.fetchPage(ctx, document, vars, path)
		if err != nil {
			if f.Policy == StopAndReturnPartial {
				f.client.logger.Warn("GraphQL page %d of %s failed, stopping pagination: %v", page, strings.Join(path, "."), err)
				return all, nil
			}
			return nil, fmt.Errorf("fetching %s page %d: %w", strings.Join(path, "."), page, err)
		}

		all = append(all, conn.items()...)

		if !conn.PageInfo.HasNextPage {
			return all, nil
		}
		if conn.PageInfo.EndCursor == "" {
			return nil, fmt.Errorf("%w: %s reports hasNextPage without an endCursor", ErrGraphQL, strings.Join(path, "."))
		}
		vars["cursor"] = conn.PageInfo.EndCursor
	}
}

func (f *GraphFetcher) fetchPage(ctx context.Context, document string, vars map[string]any, path []string) (*connection, error) {
	body, err := f.client.PostJSON(ctx, graphqlPath, graphRequest{Query: document, Variables: vars})
	if err != nil {
		return nil, err
	}

	var resp graphResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}

	raw := resp.Data
	for _, field := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: expected object before %q", ErrGraphQL, field)
		}
		next, ok := obj[field]
		if !ok || string(next) == "null" {
			return nil, fmt.Errorf("%w: field %q missing from response", ErrGraphQL, field)
		}
		raw = next
	}

	var conn connection
	if err := json.Unmarshal(raw, &conn); err != nil {
		return nil, fmt.Errorf("decoding connection: %w", err)
	}
	return &conn, nil
}
