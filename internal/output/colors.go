package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements of a report
type ColorScheme struct {
	Path      *color.Color
	Field     *color.Color
	Rule      *color.Color
	Schema    *color.Color
	Invariant *color.Color
	Success   *color.Color
	Error     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Path:      color.New(color.FgCyan),
		Field:     color.New(color.FgYellow),
		Rule:      color.New(color.FgMagenta),
		Schema:    color.New(color.FgRed, color.Bold),
		Invariant: color.New(color.FgYellow, color.Bold),
		Success:   color.New(color.FgGreen),
		Error:     color.New(color.FgRed),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	for _, c := range []*color.Color{
		scheme.Path, scheme.Field, scheme.Rule, scheme.Schema,
		scheme.Invariant, scheme.Success, scheme.Error, scheme.Highlight,
	} {
		c.DisableColor()
	}

	return scheme
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
