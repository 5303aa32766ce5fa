package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

type detailField struct {
	label string
	value string
}

// RenderDetail renders a full view of one loaded row.
func RenderDetail(r *model.Row) string {
	fields := detailFields(r)

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%s  %s\n", model.FormatNumber(r.IssueID), r.Title)
		fmt.Fprintf(&b, "%s\n\n", stateLabel(r.State))
		for _, f := range fields {
			fmt.Fprintf(&b, "%-12s %s\n", f.label+":", f.value)
		}
		return b.String()
	}

	idStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	titleStyle := lipgloss.NewStyle().Bold(true)
	stateStyle := lipgloss.NewStyle().Foreground(ColorFromName(r.State.Color())).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	header := fmt.Sprintf("%s  %s\n%s",
		idStyle.Render(model.FormatNumber(r.IssueID)),
		titleStyle.Render(r.Title),
		stateStyle.Render(stateLabel(r.State)),
	)

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(f.label+":"), f.value))
	}

	return header + "\n\n" + strings.Join(lines, "\n")
}

func detailFields(r *model.Row) []detailField {
	var fields []detailField

	if r.StateReason != nil {
		fields = append(fields, detailField{"Reason", *r.StateReason})
	}
	if len(r.Labels) > 0 {
		fields = append(fields, detailField{"Labels", strings.Join(r.Labels, ", ")})
	}
	if len(r.Assignees) > 0 {
		fields = append(fields, detailField{"Assignees", strings.Join(r.Assignees, ", ")})
	}
	if r.Projects == nil {
		fields = append(fields, detailField{"Projects", "none"})
	} else {
		fields = append(fields, detailField{"Projects", strings.Join(r.Projects, ", ")})
	}

	fields = append(fields, detailField{"Created", timeLabel(r.CreatedTime)})
	fields = append(fields, detailField{"Updated", timeLabel(r.UpdatedTime)})
	if r.ClosedTime != nil {
		fields = append(fields, detailField{"Closed", timeLabel(r.ClosedTime)})
	}
	if r.URL != "" {
		fields = append(fields, detailField{"URL", r.URL})
	}

	return fields
}

// timeLabel renders a canonical timestamp with its relative age.
func timeLabel(s *string) string {
	if s == nil {
		return "-"
	}
	row := model.Row{UpdatedTime: s}
	if t, ok := row.Updated(); ok {
		return fmt.Sprintf("%s (%s)", *s, humanize.Time(t))
	}
	return *s
}
