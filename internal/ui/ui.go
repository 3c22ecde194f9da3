// Package ui styles terminal output for the hl command.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Format represents the output format type
type Format int

const (
	// FormatAuto picks terminal or text output from the environment
	FormatAuto Format = iota
	// FormatTerminal renders colored output
	FormatTerminal
	// FormatText renders plain text output without any styling
	FormatText
	// FormatJSON renders machine-readable JSON output
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatTerminal:
		return "term"
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a string into a Format value
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return FormatAuto, nil
	case "term", "terminal":
		return FormatTerminal, nil
	case "text", "plain":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format: %s", s)
	}
}

// DetectFormat resolves FormatAuto for output.
func DetectFormat(output *os.File) Format {
	if os.Getenv("NO_COLOR") != "" {
		return FormatText
	}
	if !IsTerminal(output) {
		return FormatText
	}
	if termenv.NewOutput(output).Profile == termenv.Ascii {
		return FormatText
	}
	return FormatTerminal
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#66BB6A"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFCA28"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#42A5F5"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
)

var (
	renderer    = lipgloss.NewRenderer(os.Stdout)
	passStyle   = renderer.NewStyle().Foreground(colorPass).Bold(true)
	warnStyle   = renderer.NewStyle().Foreground(colorWarn).Bold(true)
	failStyle   = renderer.NewStyle().Foreground(colorFail).Bold(true)
	accentStyle = renderer.NewStyle().Foreground(colorAccent)
	mutedStyle  = renderer.NewStyle().Foreground(colorMuted)
	keyStyle    = renderer.NewStyle().Bold(true)
)

// SetFormat applies f to every Render function. FormatText and FormatJSON
// disable color.
func SetFormat(f Format) {
	if f == FormatAuto {
		f = DetectFormat(os.Stdout)
	}
	if f == FormatTerminal {
		renderer.SetColorProfile(termenv.NewOutput(os.Stdout).Profile)
		return
	}
	renderer.SetColorProfile(termenv.Ascii)
}

// RenderPass renders a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders an error marker.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted dims s.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// KeyValue writes an aligned "key: value" line to w.
func KeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "   %s %v\n", keyStyle.Render(fmt.Sprintf("%-14s", key+":")), value)
}

// Confirm asks a yes/no question. When stdin is not a terminal it returns
// def without prompting.
func Confirm(title string, def bool) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return def, nil
	}

	answer := def
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&answer),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return answer, nil
}
