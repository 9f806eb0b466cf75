package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme holds the colors used by the text report.
type ColorScheme struct {
	Title   *color.Color
	Section *color.Color
	Label   *color.Color
	Good    *color.Color
	Warn    *color.Color
	Bad     *color.Color
}

// DefaultColorScheme returns the colored scheme. Colors are forced on so the
// caller alone decides, through ShouldColor, whether a stream gets them.
func DefaultColorScheme() *ColorScheme {
	s := &ColorScheme{
		Title:   color.New(color.FgCyan, color.Bold),
		Section: color.New(color.FgBlue, color.Bold),
		Label:   color.New(color.FgWhite),
		Good:    color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Bad:     color.New(color.FgRed, color.Bold),
	}
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

// NoColorScheme returns a scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.DisableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Section, s.Label, s.Good, s.Warn, s.Bad}
}

// ShouldColor reports whether output to f should be colored.
func ShouldColor(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SchemeFor picks the scheme for f.
func SchemeFor(f *os.File, noColor bool) *ColorScheme {
	if ShouldColor(f, noColor) {
		return DefaultColorScheme()
	}
	return NoColorScheme()
}
