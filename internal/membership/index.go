// Package membership resolves which project boards each issue of a
// repository appears on.
package membership

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// Index maps repository-local issue numbers to the names of the projects the
// issue appears in. Names keep insertion order and are unique per issue.
//
// An Index is built once and then frozen; after Freeze it is read-only and
// safe to share.
type Index struct {
	byIssue  map[model.IssueNumber][]string
	projects []string
	seen     map[string]bool
	frozen   bool
}

// NewIndex returns an empty, writable index.
func NewIndex() *Index {
	return &Index{
		byIssue: make(map[model.IssueNumber][]string),
		seen:    make(map[string]bool),
	}
}

// AddProject records that a project was visited, whether or not any issue
// was found on it.
func (ix *Index) AddProject(name string) {
	if ix.frozen || ix.seen[name] {
		return
	}
	ix.seen[name] = true
	ix.projects = append(ix.projects, name)
}

// Add records that issue n appears in project. It returns false when the
// pair was already present or the index is frozen.
func (ix *Index) Add(n model.IssueNumber, project string) bool {
	if ix.frozen {
		return false
	}
	ix.AddProject(project)

	for _, existing := range ix.byIssue[n] {
		if existing == project {
			return false
		}
	}
	ix.byIssue[n] = append(ix.byIssue[n], project)
	return true
}

// Freeze makes the index read-only and returns it.
func (ix *Index) Freeze() *Index {
	ix.frozen = true
	return ix
}

// Frozen reports whether Freeze has been called.
func (ix *Index) Frozen() bool {
	return ix.frozen
}

// Lookup returns the projects issue n appears in, or nil when the issue is on
// no project. The returned slice is a copy.
func (ix *Index) Lookup(n model.IssueNumber) []string {
	names, ok := ix.byIssue[n]
	if !ok {
		return nil
	}
	return append([]string(nil), names...)
}

// Len returns the number of issues with at least one project.
func (ix *Index) Len() int {
	return len(ix.byIssue)
}

// Projects returns the names of every project visited, in visit order.
func (ix *Index) Projects() []string {
	return append([]string(nil), ix.projects...)
}

// Numbers returns the indexed issue numbers in ascending order.
func (ix *Index) Numbers() []model.IssueNumber {
	nums := make([]model.IssueNumber, 0, len(ix.byIssue))
	for n := range ix.byIssue {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// MarshalJSON encodes the index as an object keyed by issue number.
func (ix *Index) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(ix.byIssue))
	for n, names := range ix.byIssue {
		out[strconv.Itoa(int(n))] = names
	}
	return json.Marshal(out)
}
