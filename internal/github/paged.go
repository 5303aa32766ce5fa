package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// PageErrorPolicy decides what a fetcher does when a page request comes back
// with a non-success status.
type PageErrorPolicy int

const (
	// StopAndReturnPartial logs the failure and ends the traversal, keeping
	// whatever was collected so far.
	StopAndReturnPartial PageErrorPolicy = iota
	// Abort returns the failure to the caller.
	Abort
)

func (p PageErrorPolicy) String() string {
	switch p {
	case StopAndReturnPartial:
		return "stop_and_return_partial"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("PageErrorPolicy(%d)", int(p))
	}
}

// ExtractFunc decodes one page body into its records.
type ExtractFunc func(body []byte) ([]json.RawMessage, error)

// DecodeArray decodes a page whose body is a bare JSON array.
func DecodeArray(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DecodeItems decodes a page wrapped in an {"items": [...]} envelope, as
// returned by the search endpoints.
func DecodeItems(body []byte) ([]json.RawMessage, error) {
	var env struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// PagedFetcher walks a page-numbered REST listing. Requests are issued
// sequentially starting at page 1 until an empty page is returned or a
// request fails.
type PagedFetcher struct {
	client   *Client
	PageSize int
	Policy   PageErrorPolicy
	Accept   string
	Extract  ExtractFunc
}

// NewPagedFetcher returns a fetcher using 100 records per page that stops
// quietly on a failed page.
func NewPagedFetcher(client *Client) *PagedFetcher {
	return &PagedFetcher{
		client:   client,
		PageSize: DefaultPageSize,
		Policy:   StopAndReturnPartial,
		Accept:   MediaTypeJSON,
		Extract:  DecodeArray,
	}
}

// Each calls fn once per non-empty page, in page order. per_page and page are
// merged into a copy of query. An error returned by fn stops the traversal
// and is returned unchanged.
func (f *PagedFetcher) Each(ctx context.Context, path string, query url.Values, fn func(page int, items []json.RawMessage) error) error {
	extract := f.Extract
	if extract == nil {
		extract = DecodeArray
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("per_page", strconv.Itoa(pageSize))
		q.Set("page", strconv.Itoa(page))

		body, err := f.client.Get(ctx, path, q, f.Accept)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && f.Policy == StopAndReturnPartial {
				f.client.logger.Warn("Failed to fetch %s page %d (status %d), stopping pagination", path, page, se.StatusCode)
				return nil
			}
			return fmt.Errorf("fetching %s page %d: %w", path, page, err)
		}

		items, err := extract(body)
		if err != nil {
			return fmt.Errorf("decoding %s page %d: %w", path, page, err)
		}
		if len(items) == 0 {
			return nil
		}

		if err := fn(page, items); err != nil {
			return err
		}
	}
}

// FetchAll returns the concatenation of every page in server order. No
// deduplication is performed.
func (f *PagedFetcher) FetchAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	err := f.Each(ctx, path, query, func(_ int, items []json.RawMessage) error {
		all = append(all, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// FetchInto pages through path and decodes every record into a T.
func FetchInto[T any](ctx context.Context, f *PagedFetcher, path string, query url.Values) ([]T, error) {
	raw, err := f.FetchAll(ctx, path, query)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("decoding %s record %d: %w", path, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
