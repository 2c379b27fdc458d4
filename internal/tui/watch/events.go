package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/pumpkin/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Muted.Render("  Waiting for events..."),
		)
		return theme.Panel.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	var typeStyle lipgloss.Style
	switch e.Type {
	case events.ProgramCompleted:
		typeStyle = theme.Completed
	case events.ProgramFailed:
		typeStyle = theme.Failed
	case events.ProgramStarted:
		typeStyle = theme.Running
	default:
		typeStyle = theme.Muted
	}

	return fmt.Sprintf("%s %s %s %s",
		theme.Muted.Render(e.At.Format("15:04:05")),
		typeStyle.Render(fmt.Sprintf("%-18s", e.Type)),
		shortID(e.EnvID),
		extractEventDesc(e),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// extractEventDesc summarises the lifecycle payload.
func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if kind, ok := data["kind"].(string); ok {
		parts = append(parts, kind)
	}
	if size, ok := data["size"].(float64); ok {
		parts = append(parts, fmt.Sprintf("%d bytes", int64(size)))
	}
	if depth, ok := data["depth"].(float64); ok {
		parts = append(parts, fmt.Sprintf("depth %d", int64(depth)))
	}
	if ms, ok := data["duration_ms"].(float64); ok {
		parts = append(parts, fmt.Sprintf("%dms", int64(ms)))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
