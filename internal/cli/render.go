package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/bulkops/internal/checkpoint"
)

// summaryLine is one label/value pair of the run summary.
type summaryLine struct {
	label string
	value string
	color lipgloss.Color
}

func runSummaryLines(state *checkpoint.RunState, steps int) []summaryLine {
	progress := "unknown"
	if state.Progress.Total != nil {
		progress = fmt.Sprintf("%s / %s (%.0f%%)",
			formatCount(state.Progress.Offset),
			formatCount(*state.Progress.Total),
			state.Progress.PercentComplete())
	}

	statusColor := colorWarn
	switch state.Status {
	case checkpoint.StatusCompleted:
		statusColor = colorOK
	case checkpoint.StatusFailed:
		statusColor = colorFail
	}
	failedColor := colorValue
	if state.Outcomes.Failed > 0 {
		failedColor = colorFail
	}

	return []summaryLine{
		{label: "Run", value: state.RunID, color: colorValue},
		{label: "Operation", value: state.OperationID + " on " + state.RecordType, color: colorValue},
		{label: "Status", value: state.Status, color: statusColor},
		{label: "Steps", value: formatCount(steps), color: colorValue},
		{label: "Progress", value: progress, color: colorValue},
		{label: "Done", value: formatCount(state.Outcomes.Done), color: colorOK},
		{label: "Skipped", value: formatCount(state.Outcomes.Skipped), color: colorValue},
		{label: "Failed", value: formatCount(state.Outcomes.Failed), color: failedColor},
		{label: "Unresolved", value: formatCount(state.Progress.Skipped), color: colorValue},
	}
}

// renderRunSummary prints the run summary, styled when w is a terminal.
func renderRunSummary(w io.Writer, state *checkpoint.RunState, steps int) {
	lines := runSummaryLines(state, steps)
	hint := ""
	if !state.Finished() {
		hint = "Resume with: bulkops run " + state.RunFile + " --resume " + state.RunID
	}

	if !isTerminalWriter(w) {
		_, _ = fmt.Fprintln(w, "RUN SUMMARY")
		for _, l := range lines {
			_, _ = fmt.Fprintf(w, "  %-11s %s\n", l.label+":", l.value)
		}
		if hint != "" {
			_, _ = fmt.Fprintln(w, hint)
		}
		return
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	labelStyle := lipgloss.NewStyle().Foreground(colorLabel).Width(12)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Run Summary"))
	sb.WriteString("\n\n")
	for i, l := range lines {
		sb.WriteString(labelStyle.Render(l.label + ":"))
		sb.WriteString(lipgloss.NewStyle().Foreground(l.color).Bold(true).Render(l.value))
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)
	_, _ = fmt.Fprintln(w, box.Render(sb.String()))
	if hint != "" {
		_, _ = fmt.Fprintln(w, lipgloss.NewStyle().Foreground(colorLabel).Italic(true).Render(hint))
	}
}
