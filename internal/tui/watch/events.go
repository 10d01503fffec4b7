package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/taskd/internal/events"
)

const streamLines = 8

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4
	title := theme.Title.Render("EVENT STREAM")

	if len(eventLog) == 0 {
		return theme.Border.Width(innerWidth).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, theme.Dim.Render("  Waiting for events...")),
		)
	}

	lines := make([]string, 0, streamLines)
	for _, e := range eventLog[:min(len(eventLog), streamLines)] {
		lines = append(lines, formatEvent(e, theme))
	}
	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func formatEvent(e events.Event, theme Theme) string {
	state := strings.ToUpper(strings.TrimPrefix(e.Type, "task."))
	typ := theme.StateStyle(state).Render(fmt.Sprintf("%-16s", e.Type))
	return fmt.Sprintf("%s %s %s", theme.Dim.Render(e.At.Format("15:04:05")), typ, describeEvent(e))
}

// describeEvent summarises a payload as "<task> <action> [error type]".
func describeEvent(e events.Event) string {
	var te events.TaskEvent
	if err := json.Unmarshal(e.Data, &te); err != nil || te.TaskID == "" {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	parts := []string{"[" + te.TaskID + "]", string(te.Action)}
	if te.Error != nil {
		parts = append(parts, string(te.Error.Type))
	}
	return strings.Join(parts, " ")
}
