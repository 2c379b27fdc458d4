// Package watch implements a live terminal monitor for a running pumpkindb
// server, fed by the HTTP API's /healthz and /events endpoints.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles for panels and program states.
type Theme struct {
	Completed lipgloss.Style
	Running   lipgloss.Style
	Failed    lipgloss.Style
	Unknown   lipgloss.Style

	Panel  lipgloss.Style
	Title  lipgloss.Style
	Muted  lipgloss.Style
	Accent lipgloss.Style

	PulseLit  lipgloss.Style
	PulseDark lipgloss.Style
}

func NewDefaultTheme() Theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

	return Theme{
		Completed: fg("2"),
		Running:   fg("3"),
		Failed:    fg("1"),
		Unknown:   fg("8"),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("208")),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")).Padding(0, 1),
		Muted:  fg("245"),
		Accent: fg("214"),

		PulseLit:  fg("208"),
		PulseDark: fg("238"),
	}
}
