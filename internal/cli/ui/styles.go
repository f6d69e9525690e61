// Package ui holds terminal styling for the asset CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "2", Dark: "2"}
	ColorError   = lipgloss.AdaptiveColor{Light: "1", Dark: "1"}
	ColorPrimary = lipgloss.AdaptiveColor{Light: "5", Dark: "5"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "6", Dark: "6"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "8", Dark: "8"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "3", Dark: "3"}

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleHeader  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	IconSuccess = "✔"
	IconError   = "✘"
	IconInfo    = "ℹ"
	IconWarning = "⚠"
)

// FormatSuccess returns a success message with icon
func FormatSuccess(msg string) string {
	return StyleSuccess.Render(IconSuccess + " " + msg)
}

// FormatError returns an error message with icon
func FormatError(msg string) string {
	return StyleError.Render(IconError + " " + msg)
}

// FormatInfo returns an info message with icon
func FormatInfo(msg string) string {
	return StyleInfo.Render(IconInfo + " " + msg)
}

// FormatWarning returns a warning message with icon
func FormatWarning(msg string) string {
	return StyleWarning.Render(IconWarning + " " + msg)
}

// FormatMuted returns muted text
func FormatMuted(text string) string {
	return StyleMuted.Render(text)
}

// FormatBytes renders n as B, KB or MB with one decimal.
func FormatBytes(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	}
}

// Table renders rows under a header with left-aligned, padded columns.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Width(widths[i]).Render(cell)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var b strings.Builder
	b.WriteString(line(header, StyleHeader))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(line(row, lipgloss.NewStyle()))
	}
	return b.String()
}

// ProgressBar draws upload progress on a single terminal line.
type ProgressBar struct {
	bar progress.Model
}

// NewProgressBar creates a bar of the given width.
func NewProgressBar(width int) *ProgressBar {
	return &ProgressBar{bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width))}
}

// Line renders the bar for percent in [0,100], prefixed with a carriage return.
func (p *ProgressBar) Line(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return "\r" + p.bar.ViewAs(float64(percent)/100)
}
