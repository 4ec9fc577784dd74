package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the TUI styling definitions
type Styles struct {
	// App layout
	App lipgloss.Style

	// Pane bar
	PaneActive   lipgloss.Style
	PaneInactive lipgloss.Style
	PaneBar      lipgloss.Style

	// Tweet list
	Cursor   lipgloss.Style
	User     lipgloss.Style
	Date     lipgloss.Style
	Text     lipgloss.Style
	Reply    lipgloss.Style
	Selected lipgloss.Style
	Empty    lipgloss.Style

	// Alerts
	AlertError   lipgloss.Style
	AlertWarning lipgloss.Style
	AlertInfo    lipgloss.Style
	AlertSuccess lipgloss.Style

	// Status bar
	StatusBar       lipgloss.Style
	StatusIdle      lipgloss.Style
	StatusSearching lipgloss.Style
	StatusFollowing lipgloss.Style

	// Input
	InputStyle lipgloss.Style

	// General
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Accent      lipgloss.Style
	WhiteCursor lipgloss.Style
}

// DefaultStyles creates the default style set using the default renderer.
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

// NewStyles creates the style set using the given renderer.
// Over SSH, pass the renderer from wishbubbletea.MakeRenderer(sess)
// so that styles emit ANSI colors appropriate for the SSH client's terminal.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		App: r.NewStyle(),

		PaneActive: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2),
		PaneInactive: r.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 2),
		PaneBar: r.NewStyle().
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238")),

		Cursor: r.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true),
		User: r.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true),
		Date: r.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true),
		Text: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		Reply: r.NewStyle().
			Foreground(lipgloss.Color("81")),
		Selected: r.NewStyle().
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("213")).
			PaddingLeft(1),
		Empty: r.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true).
			Padding(1, 2),

		AlertError: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		AlertWarning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		AlertInfo: r.NewStyle().
			Foreground(lipgloss.Color("81")),
		AlertSuccess: r.NewStyle().
			Foreground(lipgloss.Color("76")),

		StatusBar: r.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		StatusIdle: r.NewStyle().
			Foreground(lipgloss.Color("76")).
			Bold(true),
		StatusSearching: r.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		StatusFollowing: r.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true),

		InputStyle: r.NewStyle().
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238")),

		Muted: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Bold: r.NewStyle().
			Bold(true),
		Accent: r.NewStyle().
			Foreground(lipgloss.Color("213")),
		WhiteCursor: r.NewStyle().
			Foreground(lipgloss.Color("15")),
	}
}
