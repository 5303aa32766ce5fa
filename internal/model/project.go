package model

import (
	"regexp"
	"strconv"
	"strings"
)

// contentIssuePattern matches the trailing issue segment of a card's
// content_url, e.g. ".../repos/o/r/issues/42".
var contentIssuePattern = regexp.MustCompile(`/issues/(\d+)$`)

// ProjectKind identifies which project board generation a project belongs to.
type ProjectKind string

const (
	ProjectKindClassic ProjectKind = "classic"
	ProjectKindV2      ProjectKind = "v2"
)

// Project is a project board. Classic projects carry numeric ids and v2
// projects carry node ids; both are stored as strings.
type Project struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind ProjectKind `json:"kind"`
}

// Column is a classic project column.
type Column struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Card is a classic project card. Notes have no content URL.
type Card struct {
	ID         int64  `json:"id"`
	Note       string `json:"note,omitempty"`
	ContentURL string `json:"content_url,omitempty"`
}

// IssueNumber recovers the linked issue number from the card's content URL.
// It returns false for notes and for content that is not an issue.
func (c Card) IssueNumber() (IssueNumber, bool) {
	return IssueNumberFromURL(c.ContentURL)
}

// IssueNumberFromURL extracts the repository-local number from a URL ending
// in /issues/<digits>.
func IssueNumberFromURL(contentURL string) (IssueNumber, bool) {
	if contentURL == "" {
		return 0, false
	}
	m := contentIssuePattern.FindStringSubmatch(contentURL)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return IssueNumber(n), true
}

// ContentType values for v2 project item content.
const (
	ContentTypeIssue       = "Issue"
	ContentTypePullRequest = "PullRequest"
	ContentTypeDraftIssue  = "DraftIssue"
)

// RepositoryRef names the repository a piece of project content lives in.
type RepositoryRef struct {
	NameWithOwner string `json:"nameWithOwner"`
}

// ItemContent is the content linked from a v2 project item.
type ItemContent struct {
	Typename   string         `json:"__typename"`
	Number     IssueNumber    `json:"number"`
	Title      string         `json:"title"`
	Repository *RepositoryRef `json:"repository,omitempty"`
}

// Item is a v2 project item. Content is nil when the item is redacted or
// otherwise not visible.
type Item struct {
	ID      string       `json:"id"`
	Content *ItemContent `json:"content"`
}

// IssueNumber returns the linked issue number when the item's content is an
// issue.
func (i Item) IssueNumber() (IssueNumber, bool) {
	if i.Content == nil || i.Content.Typename != ContentTypeIssue || i.Content.Number <= 0 {
		return 0, false
	}
	return i.Content.Number, true
}

// InRepository reports whether the item's content belongs to nameWithOwner.
// v2 projects may hold issues from several repositories; content without a
// repository reference is assumed local.
func (i Item) InRepository(nameWithOwner string) bool {
	if i.Content == nil || i.Content.Repository == nil || i.Content.Repository.NameWithOwner == "" {
		return true
	}
	return strings.EqualFold(i.Content.Repository.NameWithOwner, nameWithOwner)
}
