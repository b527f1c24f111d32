package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Success renders the text green.
func Success(text string) string { return successStyle.Render(text) }

// Error renders the text red.
func Error(text string) string { return errorStyle.Render(text) }

// Warn renders the text yellow.
func Warn(text string) string { return warnStyle.Render(text) }

// Bold renders the text bold.
func Bold(text string) string { return boldStyle.Render(text) }

// Dim renders the text faint, for secondary detail.
func Dim(text string) string { return dimStyle.Render(text) }

// EnabledMarker renders the mod state column for list output.
func EnabledMarker(enabled bool) string {
	if enabled {
		return Success("✓ enabled")
	}
	return Dim("disabled")
}
