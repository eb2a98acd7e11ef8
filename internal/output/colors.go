package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title    *color.Color
	Scenario *color.Color
	Mode     *color.Color
	Number   *color.Color
	Rate     *color.Color
	Latency  *color.Color
	Success  *color.Color
	Warning  *color.Color
	Error    *color.Color
	Dim      *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:    color.New(color.FgCyan, color.Bold),
		Scenario: color.New(color.Bold),
		Mode:     color.New(color.FgMagenta),
		Number:   color.New(color.FgCyan),
		Rate:     color.New(color.FgGreen, color.Bold),
		Latency:  color.New(color.FgBlue),
		Success:  color.New(color.FgGreen),
		Warning:  color.New(color.FgYellow),
		Error:    color.New(color.FgRed),
		Dim:      color.New(color.Faint),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// forceColors enables every color regardless of the global detection
// fatih/color does against stdout.
func (s *ColorScheme) forceColors() *ColorScheme {
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Title, s.Scenario, s.Mode, s.Number, s.Rate,
		s.Latency, s.Success, s.Warning, s.Error, s.Dim,
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return color.New(color.FgYellow).Sprint("⚠")
}
