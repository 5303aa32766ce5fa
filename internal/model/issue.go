package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NumberPrefix is the display prefix for repository-local issue numbers.
const NumberPrefix = "#"

// IssueNumber is the repository-local issue number ("number" on the wire).
// Project cards and project items reference issues by this value, so the
// membership index is keyed by it.
type IssueNumber int

// GlobalIssueID is the API-wide numeric issue id ("id" on the wire). It is
// not interchangeable with IssueNumber.
type GlobalIssueID int64

// FormatNumber returns the display form of an issue number, e.g. "#42".
func FormatNumber(n IssueNumber) string {
	return fmt.Sprintf("%s%d", NumberPrefix, n)
}

// ParseNumber accepts both "#42" and "42" and returns the issue number.
func ParseNumber(input string) (IssueNumber, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("empty issue number")
	}
	s = strings.TrimPrefix(s, NumberPrefix)

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid issue number %q: %w", input, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid issue number %q: must be positive", input)
	}
	return IssueNumber(n), nil
}

// State represents the lifecycle state of an issue.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

var validStates = []State{StateOpen, StateClosed}

// ValidateState returns an error if s is not a recognized state.
func ValidateState(s State) error {
	for _, v := range validStates {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid state %q: must be one of %v", s, validStates)
}

// Color returns a color name string suitable for terminal rendering.
func (s State) Color() string {
	switch s {
	case StateOpen:
		return "green"
	case StateClosed:
		return "magenta"
	default:
		return "white"
	}
}

// Icon returns a single-character glyph for the state.
func (s State) Icon() string {
	switch s {
	case StateOpen:
		return "○"
	case StateClosed:
		return "✔"
	default:
		return "?"
	}
}

// RawLabel is a label as returned by the issues endpoint.
type RawLabel struct {
	Name string `json:"name"`
}

// RawUser is a user reference as returned by the issues endpoint.
type RawUser struct {
	Login string `json:"login"`
}

// RawIssue is the REST wire shape of an issue listing entry. Timestamps are
// kept as source strings so that parsing failures surface in the transformer.
type RawIssue struct {
	ID          GlobalIssueID   `json:"id"`
	Number      IssueNumber     `json:"number"`
	Title       string          `json:"title"`
	State       State           `json:"state"`
	StateReason *string         `json:"state_reason"`
	CreatedAt   *string         `json:"created_at"`
	UpdatedAt   *string         `json:"updated_at"`
	ClosedAt    *string         `json:"closed_at"`
	Labels      []RawLabel      `json:"labels"`
	Assignees   []RawUser       `json:"assignees"`
	HTMLURL     string          `json:"html_url"`
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the record is a pull request. The issues
// endpoint returns pull requests alongside issues and marks them with a
// non-null pull_request object.
func (r *RawIssue) IsPullRequest() bool {
	if len(r.PullRequest) == 0 {
		return false
	}
	switch strings.TrimSpace(string(r.PullRequest)) {
	case "null", "{}", "false", `""`:
		return false
	}
	return true
}
