package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/pumpkin/internal/events"
)

// maxTrackedPrograms bounds the recent programs table.
const maxTrackedPrograms = 50

// ProgramState tracks one program's lifecycle as seen on the event stream.
type ProgramState struct {
	EnvID     string
	Status    string // running, completed, failed
	Size      int64
	Depth     int64
	ErrorKind string
	Duration  time.Duration
	Started   time.Time
}

// programTable keeps program states keyed by environment ID, newest first.
type programTable struct {
	byID  map[string]*ProgramState
	order []string
}

func newProgramTable() *programTable {
	return &programTable{byID: make(map[string]*ProgramState)}
}

func (t *programTable) Len() int { return len(t.order) }

// Recent returns up to n states, newest first.
func (t *programTable) Recent(n int) []*ProgramState {
	if n > len(t.order) {
		n = len(t.order)
	}
	out := make([]*ProgramState, 0, n)
	for _, id := range t.order[:n] {
		out = append(out, t.byID[id])
	}
	return out
}

func (t *programTable) Apply(e events.Event) {
	if e.EnvID == "" {
		return
	}

	var data struct {
		Size       int64  `json:"size"`
		Depth      int64  `json:"depth"`
		Kind       string `json:"kind"`
		DurationMS int64  `json:"duration_ms"`
	}
	_ = json.Unmarshal(e.Data, &data)

	st, ok := t.byID[e.EnvID]
	if !ok {
		st = &ProgramState{EnvID: e.EnvID, Started: e.At}
		t.byID[e.EnvID] = st
		t.order = append([]string{e.EnvID}, t.order...)
		if len(t.order) > maxTrackedPrograms {
			for _, id := range t.order[maxTrackedPrograms:] {
				delete(t.byID, id)
			}
			t.order = t.order[:maxTrackedPrograms]
		}
	}

	switch e.Type {
	case events.ProgramStarted:
		st.Status = "running"
		st.Size = data.Size
		st.Started = e.At
	case events.ProgramCompleted:
		st.Status = "completed"
		st.Depth = data.Depth
		st.Duration = time.Duration(data.DurationMS) * time.Millisecond
	case events.ProgramFailed:
		st.Status = "failed"
		st.ErrorKind = data.Kind
		st.Duration = time.Duration(data.DurationMS) * time.Millisecond
	}
}

func renderPrograms(table *programTable, theme Theme, width int) string {
	innerWidth := width - 4

	recent := table.Recent(8)
	if len(recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("PROGRAMS"),
			theme.Muted.Render("  No programs yet"),
		)
		return theme.Panel.Width(innerWidth).Render(content)
	}

	var lines []string
	for _, st := range recent {
		var status string
		switch st.Status {
		case "completed":
			status = theme.Completed.Render("✓ completed")
		case "failed":
			status = theme.Failed.Render("✗ failed   ")
		case "running":
			status = theme.Running.Render("● running  ")
		default:
			status = theme.Unknown.Render("? unknown  ")
		}

		var detail string
		switch st.Status {
		case "completed":
			detail = fmt.Sprintf("%d items in %s", st.Depth, st.Duration)
		case "failed":
			detail = fmt.Sprintf("%s after %s", st.ErrorKind, st.Duration)
		case "running":
			detail = fmt.Sprintf("%d bytes", st.Size)
		}

		lines = append(lines, fmt.Sprintf("%s  %s  %s", shortID(st.EnvID), status, theme.Muted.Render(detail)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("PROGRAMS"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Panel.Width(innerWidth).Render(content)
}
