package model

import "time"

// Timestamp layouts. Source timestamps are UTC with a Z suffix; canonical
// timestamps drop the zone suffix.
const (
	SourceTimeLayout    = "2006-01-02T15:04:05Z"
	CanonicalTimeLayout = "2006-01-02T15:04:05"
)

// RowColumns lists every column of a Row in insert order.
var RowColumns = []string{
	"issue_id",
	"issue_title",
	"created_time",
	"updated_time",
	"labels",
	"assignees",
	"state",
	"state_reason",
	"closed_time",
	"projects",
	"issue_url",
}

// CoreColumns are the columns an existing destination table must carry.
// Tables created before state_reason and issue_url were tracked lack them.
var CoreColumns = []string{
	"issue_id",
	"issue_title",
	"created_time",
	"updated_time",
	"labels",
	"assignees",
	"state",
	"closed_time",
	"projects",
}

// Row is the canonical, denormalized issue record persisted to the warehouse.
//
// Projects is nil when the issue is not attached to any project board; it
// serializes as JSON null rather than an empty list.
type Row struct {
	IssueID     IssueNumber `json:"issue_id"`
	Title       string      `json:"issue_title"`
	CreatedTime *string     `json:"created_time"`
	UpdatedTime *string     `json:"updated_time"`
	Labels      []string    `json:"labels"`
	Assignees   []string    `json:"assignees"`
	State       State       `json:"state"`
	StateReason *string     `json:"state_reason"`
	ClosedTime  *string     `json:"closed_time"`
	Projects    []string    `json:"projects"`
	URL         string      `json:"issue_url,omitempty"`
}

// Updated returns the parsed update time, or false when it is unset or not
// in canonical form.
func (r *Row) Updated() (time.Time, bool) {
	return parseCanonical(r.UpdatedTime)
}

// Created returns the parsed creation time, or false when it is unset or not
// in canonical form.
func (r *Row) Created() (time.Time, bool) {
	return parseCanonical(r.CreatedTime)
}

func parseCanonical(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(CanonicalTimeLayout, *s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LoadRun records one completed warehouse load. ID is the warehouse job id
// when the warehouse assigns one.
type LoadRun struct {
	ID       string    `json:"id"`
	Table    string    `json:"table"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}
