package render

import (
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/ALT-F4-LLC/issuesnap/internal/extract"
)

// RunReport builds a markdown summary of a pipeline run.
func RunReport(res *extract.Result) string {
	var b strings.Builder

	title := "Extraction run"
	if res.DryRun {
		title = "Extraction dry run"
	}
	fmt.Fprintf(&b, "# %s for %s\n\n", title, res.Repo)

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Run | `%s` |\n", res.RunID)
	fmt.Fprintf(&b, "| Project API | %s |\n", res.Variant)
	fmt.Fprintf(&b, "| Projects | %s |\n", humanize.Comma(int64(len(res.Projects))))
	fmt.Fprintf(&b, "| Issues on a board | %s |\n", humanize.Comma(int64(res.IndexSize)))
	fmt.Fprintf(&b, "| Pages fetched | %s |\n", humanize.Comma(int64(res.Pages)))
	fmt.Fprintf(&b, "| Issues extracted | %s |\n", humanize.Comma(int64(res.RowCount)))
	fmt.Fprintf(&b, "| Pull requests skipped | %s |\n", humanize.Comma(int64(res.SkippedPullRequests)))
	fmt.Fprintf(&b, "| Duration | %s |\n", res.Duration.Round(time.Millisecond))

	if res.Load != nil {
		fmt.Fprintf(&b, "\n## Load\n\n")
		fmt.Fprintf(&b, "Replaced `%s` (%s) with %s rows in %s. Job `%s`.\n",
			res.Table, res.Warehouse, humanize.Comma(int64(res.Load.Rows)),
			res.LoadDuration.Round(time.Millisecond), res.Load.ID)
	} else if res.DryRun {
		fmt.Fprintf(&b, "\nNothing was loaded into `%s`.\n", res.Table)
	}

	if len(res.Projects) > 0 {
		b.WriteString("\n## Projects\n\n")
		for _, p := range res.Projects {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	return b.String()
}

// RenderRunReport renders RunReport for the terminal.
func RenderRunReport(res *extract.Result) (string, error) {
	return RenderMarkdown(RunReport(res))
}
