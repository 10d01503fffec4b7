package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState is the last /healthz answer plus stream connectivity.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Inflight      int
	Connected     bool
	LastCheck     time.Time
}

type headerView struct {
	health    HealthState
	spinner   string
	pulse     Pulse
	completed int
	failed    int
	now       time.Time
}

func renderHeader(h headerView, theme Theme, width int) string {
	innerWidth := width - 4

	status := theme.Completed.Render("HEALTHY")
	switch {
	case !h.health.Connected:
		status = theme.Failed.Render("CONNECTING")
	case h.health.Status != "" && h.health.Status != "ok":
		status = theme.Failed.Render("DEGRADED")
	}

	title := fmt.Sprintf(" TASKD WATCH %s", theme.Highlight.Render(h.spinner))
	clock := theme.Dim.Render(h.now.Format("15:04:05"))
	pad := max(1, innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	uptime := formatDuration(time.Duration(h.health.UptimeSeconds) * time.Second)
	stats := fmt.Sprintf(" %s  up %s  in flight: %d  completed: %s  failed: %s",
		status, uptime, h.health.Inflight,
		theme.Completed.Render(fmt.Sprint(h.completed)),
		theme.Failed.Render(fmt.Sprint(h.failed)),
	)

	last := "never"
	if at := h.pulse.LastEvent(); !at.IsZero() {
		last = h.now.Sub(at).Round(time.Second).String() + " ago"
	}
	activity := fmt.Sprintf(" last event: %s %s", last, h.pulse.Render(theme))

	return theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleLine, stats, activity),
	)
}
