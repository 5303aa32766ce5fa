package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

// RenderIndex renders project membership as a tree of projects, each with
// the issue numbers attached to it. Projects are shown in the given order,
// including projects with no issues.
func RenderIndex(projects []string, members map[string][]model.IssueNumber) string {
	if len(projects) == 0 {
		return EmptyState("No projects found.", "Check ISSUESNAP_PROJECTS_API for this repository.", false)
	}

	if !ColorsEnabled() {
		var b strings.Builder
		for _, p := range projects {
			fmt.Fprintf(&b, "%s (%d)\n", p, len(members[p]))
			for _, n := range members[p] {
				fmt.Fprintf(&b, "  %s\n", model.FormatNumber(n))
			}
		}
		return b.String()
	}

	projectStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	t := tree.New().Root("Projects")
	for _, p := range projects {
		node := tree.Root(fmt.Sprintf("%s %s",
			projectStyle.Render(p),
			countStyle.Render(fmt.Sprintf("(%d)", len(members[p]))),
		))
		for _, n := range members[p] {
			node.Child(model.FormatNumber(n))
		}
		t.Child(node)
	}
	return t.String()
}
