package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/pumpkin/internal/engine"
)

// HealthState tracks server health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Programs      engine.Stats
	Subscriptions int
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, beat Heartbeat, pulse ActivityPulse, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.Completed.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.Failed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.Failed.Render("DEGRADED")
	}

	lastEventStr := "never"
	if !pulse.Last().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", time.Since(pulse.Last()).Round(time.Second))
	}

	titleText := fmt.Sprintf(" PUMPKINDB WATCH %s", theme.Accent.Render(beat.Frame()))
	clock := theme.Muted.Render(time.Now().Format("15:04:05"))
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  up %s  running %s  completed %d  failed %s  subscriptions %d",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		theme.Running.Render(fmt.Sprint(health.Programs.Running)),
		health.Programs.Completed,
		theme.Failed.Render(fmt.Sprint(health.Programs.Failed)),
		health.Subscriptions,
	)

	activityLine := fmt.Sprintf(" Last program event: %s %s", lastEventStr, pulse.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Panel.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
