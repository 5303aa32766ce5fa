package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the public GitHub REST and GraphQL service root.
	DefaultBaseURL = "https://api.github.com"
	// DefaultPageSize is the per_page value used for every listing request.
	DefaultPageSize = 100

	// MediaTypeJSON is the default Accept header for REST requests.
	MediaTypeJSON = "application/vnd.github+json"
	// MediaTypeClassicProjects is required by the classic projects endpoints.
	MediaTypeClassicProjects = "application/vnd.github.inertia-preview+json"

	apiVersion = "2022-11-28"
	userAgent  = "issuesnap"
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger receives progress and warning messages. *output.Writer satisfies it.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

// ClientConfig holds the connection settings for a Client.
type ClientConfig struct {
	BaseURL string
	Token   string
}

// Client performs authenticated requests against the GitHub REST and GraphQL
// APIs. A single Client, and the HTTPClient behind it, is shared by every
// fetcher in a run.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPClient
	logger     Logger
}

// NewClient creates a new GitHub client. A nil logger discards messages.
func NewClient(config ClientConfig, httpClient HTTPClient, logger Logger) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = nopLogger{}
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Logger returns the client's logger.
func (c *Client) Logger() Logger {
	return c.logger
}

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: API returned status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: API returned status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Get performs a GET request and returns the response body. Non-2xx
// responses are returned as *StatusError.
func (c *Client) Get(ctx context.Context, path string, query url.Values, accept string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, accept)
}

// PostJSON encodes payload as the request body of a POST request.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(body), MediaTypeJSON)
}

// Status performs a GET request and reports only the response status. It is
// used to probe whether an endpoint is available.
func (c *Client) Status(ctx context.Context, path string, query url.Values, accept string) (int, error) {
	_, err := c.Get(ctx, path, query, accept)
	if err == nil {
		return http.StatusOK, nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, nil
	}
	return 0, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, accept string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	if accept == "" {
		accept = MediaTypeJSON
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return data, nil
}

// Repo identifies a repository by owner and name.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepo parses an "owner/name" string.
func ParseRepo(s string) (Repo, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("invalid repository %q: expected owner/name", s)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}
