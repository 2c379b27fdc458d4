// Package repl implements the interactive PumpkinDB terminal.
package repl

import "github.com/charmbracelet/lipgloss"

// Theme centralizes styling for the terminal.
type Theme struct {
	Trace  lipgloss.Style
	Error  lipgloss.Style
	Prompt lipgloss.Style
	Dim    lipgloss.Style
}

func NewDefaultTheme() Theme {
	return Theme{
		Trace:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Prompt: lipgloss.NewStyle().Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// PlainTheme renders without escape codes.
func PlainTheme() Theme {
	s := lipgloss.NewStyle()
	return Theme{Trace: s, Error: s, Prompt: s, Dim: s}
}
