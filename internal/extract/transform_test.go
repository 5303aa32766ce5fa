package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

func strPtr(s string) *string { return &s }

func decodeRaw(t *testing.T, s string) *model.RawIssue {
	t.Helper()
	var raw model.RawIssue
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return &raw
}

func Test_ConvertTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      *string
		want    *string
		wantErr bool
	}{
		{"utc", strPtr("2024-01-02T03:04:05Z"), strPtr("2024-01-02T03:04:05"), false},
		{"null", nil, nil, false},
		{"empty", strPtr(""), nil, false},
		{"date only", strPtr("2024-01-02"), nil, true},
		{"offset", strPtr("2024-01-02T03:04:05+01:00"), nil, true},
		{"fraction", strPtr("2024-01-02T03:04:05.123Z"), nil, true},
		{"long fraction", strPtr("2024-01-02T03:04:05.999Z"), nil, true},
		{"single digit hour", strPtr("2024-01-02T3:04:05Z"), nil, true},
		{"single digit day", strPtr("2024-01-2T03:04:05Z"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertTimestamp(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Transform_FullIssue(t *testing.T) {
	raw := decodeRaw(t, `{
		"id": 1001, "number": 42, "title": "Crash on startup", "state": "closed",
		"state_reason": "completed",
		"created_at": "2021-03-04T05:06:07Z", "updated_at": "2021-03-05T00:00:00Z",
		"closed_at": "2021-03-05T00:00:00Z",
		"labels": [{"name": "bug"}, {"name": "p1"}],
		"assignees": [{"login": "bob"}, {"login": "alice"}],
		"html_url": "https://github.com/o/r/issues/42"
	}`)

	lookup := func(n model.IssueNumber) []string {
		if n == 42 {
			return []string{"Sprint 7"}
		}
		return nil
	}

	row, ok, err := Transform(raw, lookup)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, model.Row{
		IssueID:     42,
		Title:       "Crash on startup",
		CreatedTime: strPtr("2021-03-04T05:06:07"),
		UpdatedTime: strPtr("2021-03-05T00:00:00"),
		Labels:      []string{"bug", "p1"},
		Assignees:   []string{"bob", "alice"},
		State:       model.StateClosed,
		StateReason: strPtr("completed"),
		ClosedTime:  strPtr("2021-03-05T00:00:00"),
		Projects:    []string{"Sprint 7"},
		URL:         "https://github.com/o/r/issues/42",
	}, row)
}

func Test_Transform_LookupUsesNumberNotID(t *testing.T) {
	raw := decodeRaw(t, `{"id": 7, "number": 42, "title": "t", "state": "open",
		"created_at": "2021-03-04T05:06:07Z", "updated_at": "2021-03-04T05:06:07Z"}`)

	var asked []model.IssueNumber
	_, _, err := Transform(raw, func(n model.IssueNumber) []string {
		asked = append(asked, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []model.IssueNumber{42}, asked)
}

func Test_Transform_NoProjectsIsNull(t *testing.T) {
	raw := decodeRaw(t, `{"number": 5, "title": "t", "state": "open",
		"created_at": "2021-03-04T05:06:07Z", "updated_at": "2021-03-04T05:06:07Z",
		"labels": [], "assignees": []}`)

	for name, lookup := range map[string]LookupFunc{
		"nil lookup":   nil,
		"miss":         func(model.IssueNumber) []string { return nil },
		"empty result": func(model.IssueNumber) []string { return []string{} },
	} {
		t.Run(name, func(t *testing.T) {
			row, ok, err := Transform(raw, lookup)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Nil(t, row.Projects)
			assert.NotNil(t, row.Labels)
			assert.NotNil(t, row.Assignees)
			assert.Nil(t, row.ClosedTime)

			b, err := json.Marshal(row)
			require.NoError(t, err)
			assert.Contains(t, string(b), `"projects":null`)
		})
	}
}

func Test_Transform_SkipsPullRequests(t *testing.T) {
	raw := decodeRaw(t, `{"number": 9, "title": "pr", "state": "open",
		"created_at": "not a time",
		"pull_request": {"url": "https://api.github.com/repos/o/r/pulls/9"}}`)

	_, ok, err := Transform(raw, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Transform_MalformedTimestampIsFatal(t *testing.T) {
	raw := decodeRaw(t, `{"number": 3, "title": "t", "state": "open",
		"created_at": "2021-03-04T05:06:07Z", "updated_at": "yesterday"}`)

	_, ok, err := Transform(raw, nil)
	require.ErrorIs(t, err, ErrTimestamp)
	assert.Contains(t, err.Error(), "updated_at")
	assert.False(t, ok)
}
