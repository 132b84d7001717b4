package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the colours for one theme.
type Styles struct {
	Header   lipgloss.Style
	Crumbs   lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Dialog   lipgloss.Style
	Cell     lipgloss.Style
	Folder   lipgloss.Style
	Selected lipgloss.Style
	Table    table.Styles
}

// NewStyles builds the styles for a dark or light terminal.
func NewStyles(dark bool) Styles {
	fg, accent, muted, selBg, selFg := lipgloss.Color("#1a1a1a"), lipgloss.Color("#005FAF"), lipgloss.Color("#666666"), lipgloss.Color("#BBD6F2"), lipgloss.Color("#000000")
	if dark {
		fg, accent, muted, selBg, selFg = lipgloss.Color("#EEEEEE"), lipgloss.Color("#00D7FF"), lipgloss.Color("#888888"), lipgloss.Color("#4A90E2"), lipgloss.Color("#FFFFFF")
	}

	s := Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Crumbs: lipgloss.NewStyle().Foreground(muted),
		Status: lipgloss.NewStyle().Foreground(muted),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0443E")),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E0443E")).
			Padding(0, 2),
		Cell:     lipgloss.NewStyle().Foreground(fg),
		Folder:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(selFg).Background(selBg),
	}
	s.Table = table.Styles{
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(accent).
			BorderBottom(true).
			Bold(true).
			Foreground(accent),
		Selected: s.Selected,
		Cell:     s.Cell,
	}
	return s
}
