// Package extract turns the issue listing of a repository into canonical
// warehouse rows.
package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// ErrTimestamp is returned when a source timestamp is not in the expected
// YYYY-MM-DDTHH:MM:SSZ form.
var ErrTimestamp = errors.New("malformed timestamp")

// LookupFunc returns the project names an issue appears in, or nil.
type LookupFunc func(model.IssueNumber) []string

// Transform converts one raw issue into a canonical row. Pull requests
// produce no row and ok is false. lookup may be nil, in which case every row
// has no projects.
func Transform(raw *model.RawIssue, lookup LookupFunc) (row model.Row, ok bool, err error) {
	if raw.IsPullRequest() {
		return model.Row{}, false, nil
	}

	created, err := ConvertTimestamp(raw.CreatedAt)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("created_at: %w", err)
	}
	updated, err := ConvertTimestamp(raw.UpdatedAt)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("updated_at: %w", err)
	}
	closed, err := ConvertTimestamp(raw.ClosedAt)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("closed_at: %w", err)
	}

	labels := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		labels = append(labels, l.Name)
	}
	assignees := make([]string, 0, len(raw.Assignees))
	for _, a := range raw.Assignees {
		assignees = append(assignees, a.Login)
	}

	var projects []string
	if lookup != nil {
		projects = lookup(raw.Number)
	}
	if len(projects) == 0 {
		projects = nil
	}

	return model.Row{
		IssueID:     raw.Number,
		Title:       raw.Title,
		CreatedTime: created,
		UpdatedTime: updated,
		Labels:      labels,
		Assignees:   assignees,
		State:       raw.State,
		StateReason: raw.StateReason,
		ClosedTime:  closed,
		Projects:    projects,
		URL:         raw.HTMLURL,
	}, true, nil
}

// ConvertTimestamp reformats a source timestamp into the canonical layout.
// A nil or empty input yields nil.
func ConvertTimestamp(s *string) (*string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(model.SourceTimeLayout, *s)
	// time.Parse tolerates fractional seconds and single-digit fields.
	if err != nil || t.Format(model.SourceTimeLayout) != *s {
		return nil, fmt.Errorf("%w %q", ErrTimestamp, *s)
	}
	out := t.Format(model.CanonicalTimeLayout)
	return &out, nil
}
