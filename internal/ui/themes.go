// Package ui provides the visual styling for the interactive agent CLI.
// Four named color themes are supported; the set is closed and validated
// at configuration time, never mid-dispatch.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme identifies one of the built-in color schemes.
type Theme string

const (
	ThemeCyberpunk Theme = "cyberpunk"
	ThemeOcean     Theme = "ocean"
	ThemeForest    Theme = "forest"
	ThemeSunset    Theme = "sunset"
)

var themePalettes = map[Theme]Palette{
	ThemeCyberpunk: {
		Primary: lipgloss.Color("#ff00ff"), // magenta
		Accent:  lipgloss.Color("#00ffff"), // bright cyan
		Header:  lipgloss.Color("#ff00ff"),
		Muted:   lipgloss.Color("#585858"),
	},
	ThemeOcean: {
		Primary: lipgloss.Color("#005fd7"), // blue
		Accent:  lipgloss.Color("#00afaf"), // cyan
		Header:  lipgloss.Color("#0087ff"),
		Muted:   lipgloss.Color("#5f8787"),
	},
	ThemeForest: {
		Primary: lipgloss.Color("#00af00"), // green
		Accent:  lipgloss.Color("#87ff5f"), // bright green
		Header:  lipgloss.Color("#00d700"),
		Muted:   lipgloss.Color("#5f875f"),
	},
	ThemeSunset: {
		Primary: lipgloss.Color("#ffaf00"), // amber
		Accent:  lipgloss.Color("#ff5f5f"), // bright red
		Header:  lipgloss.Color("#ff8700"),
		Muted:   lipgloss.Color("#af875f"),
	},
}

// Palette holds the raw colors of a theme.
type Palette struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Header  lipgloss.Color
	Muted   lipgloss.Color
}

// ParseTheme validates a theme name against the closed set.
func ParseTheme(name string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := themePalettes[t]; !ok {
		return "", fmt.Errorf("unknown theme %q (valid: %s)", name, strings.Join(ThemeNames(), ", "))
	}
	return t, nil
}

// ThemeNames returns the valid theme names, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themePalettes))
	for t := range themePalettes {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Styles bundles the lipgloss styles derived from one theme.
type Styles struct {
	Theme Theme

	Banner    lipgloss.Style
	Header    lipgloss.Style
	Prompt    lipgloss.Style
	UserInput lipgloss.Style
	Answer    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
}

// NewStyles builds the style bundle for a theme.
func NewStyles(t Theme) Styles {
	p, ok := themePalettes[t]
	if !ok {
		p = themePalettes[ThemeCyberpunk]
		t = ThemeCyberpunk
	}
	return Styles{
		Theme:     t,
		Banner:    lipgloss.NewStyle().Foreground(p.Primary).Bold(true),
		Header:    lipgloss.NewStyle().Foreground(p.Header).Bold(true),
		Prompt:    lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		UserInput: lipgloss.NewStyle().Foreground(p.Accent),
		Answer: lipgloss.NewStyle().
			Foreground(p.Primary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Primary).
			Padding(0, 1),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#5fff5f")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd75f")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
	}
}
