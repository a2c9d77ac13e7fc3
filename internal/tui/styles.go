// Package tui implements the Bubble Tea terminal interface for mqtty.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette is a named set of colors the theme is built from.
type Palette struct {
	Name   string
	Text   lipgloss.Color
	Dim    lipgloss.Color
	Accent lipgloss.Color
	Good   lipgloss.Color
	Warn   lipgloss.Color
	Bad    lipgloss.Color
}

// Tokyo Night is the default; the others exist for terminals where it
// reads poorly.
var palettes = map[string]Palette{
	"default": {
		Name:   "default",
		Text:   lipgloss.Color("#c0caf5"),
		Dim:    lipgloss.Color("#565f89"),
		Accent: lipgloss.Color("#7aa2f7"),
		Good:   lipgloss.Color("#9ece6a"),
		Warn:   lipgloss.Color("#e0af68"),
		Bad:    lipgloss.Color("#f38ba8"),
	},
	"light": {
		Name:   "light",
		Text:   lipgloss.Color("#343b58"),
		Dim:    lipgloss.Color("#8990b3"),
		Accent: lipgloss.Color("#2e7de9"),
		Good:   lipgloss.Color("#587539"),
		Warn:   lipgloss.Color("#8f5e15"),
		Bad:    lipgloss.Color("#f52a65"),
	},
	"mono": {
		Name:   "mono",
		Text:   lipgloss.Color("15"),
		Dim:    lipgloss.Color("8"),
		Accent: lipgloss.Color("7"),
		Good:   lipgloss.Color("15"),
		Warn:   lipgloss.Color("7"),
		Bad:    lipgloss.Color("15"),
	},
}

// PaletteByName returns the named palette, falling back to the default.
func PaletteByName(name string) (Palette, bool) {
	p, ok := palettes[name]
	if !ok {
		return palettes["default"], false
	}
	return p, true
}

// PaletteNames returns all palette names, sorted.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the palette entries for the --print-palette flag.
func (p Palette) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "palette %s\n", p.Name)
	for _, entry := range []struct {
		name  string
		color lipgloss.Color
	}{
		{"text", p.Text},
		{"dim", p.Dim},
		{"accent", p.Accent},
		{"good", p.Good},
		{"warn", p.Warn},
		{"bad", p.Bad},
	} {
		fmt.Fprintf(&b, "  %-8s %s\n", entry.name, string(entry.color))
	}
	return b.String()
}

// Theme holds the rendered styles for one palette.
type Theme struct {
	Title    lipgloss.Style
	Crumb    lipgloss.Style
	Status   lipgloss.Style
	Offline  lipgloss.Style
	Warning  lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Dim      lipgloss.Style
	Match    lipgloss.Style
	Help     lipgloss.Style
	Dialog   lipgloss.Style
	DlgTitle lipgloss.Style
	Button   lipgloss.Style
	ButtonOn lipgloss.Style
}

// NewTheme builds the style set for a palette.
func NewTheme(p Palette) Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent).PaddingLeft(1),
		Crumb:    lipgloss.NewStyle().Foreground(p.Dim).PaddingLeft(1),
		Status:   lipgloss.NewStyle().Foreground(p.Good),
		Offline:  lipgloss.NewStyle().Foreground(p.Warn).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(p.Bad),
		Selected: lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Normal:   lipgloss.NewStyle().Foreground(p.Text),
		Dim:      lipgloss.NewStyle().Foreground(p.Dim),
		Match:    lipgloss.NewStyle().Foreground(p.Warn).Underline(true),
		Help:     lipgloss.NewStyle().Foreground(p.Dim).PaddingLeft(1),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Accent).
			Padding(1, 2),
		DlgTitle: lipgloss.NewStyle().Bold(true).Foreground(p.Text),
		Button:   lipgloss.NewStyle().Padding(0, 1).Foreground(p.Dim),
		ButtonOn: lipgloss.NewStyle().Padding(0, 1).Foreground(p.Accent).Bold(true).Underline(true),
	}
}
