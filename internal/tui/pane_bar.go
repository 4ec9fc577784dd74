package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Pane identifies the part of the screen that receives keys.
type Pane int

const (
	PaneSearch Pane = iota
	PaneResults
	PaneSaved
)

var paneLabels = []string{"Search", "Results", "Saved"}

func (p Pane) String() string {
	if int(p) < len(paneLabels) {
		return paneLabels[p]
	}
	return "unknown"
}

// PaneBarModel renders the pane switcher with per-pane counts.
type PaneBarModel struct {
	Active  Pane
	Results int
	Saved   int
	Width   int
	Styles  Styles
}

// NewPaneBarModel starts focused on the search input.
func NewPaneBarModel(styles Styles) PaneBarModel {
	return PaneBarModel{Active: PaneSearch, Styles: styles}
}

// Next cycles focus forward.
func (b *PaneBarModel) Next() {
	b.Active = (b.Active + 1) % Pane(len(paneLabels))
}

// Prev cycles focus backward.
func (b *PaneBarModel) Prev() {
	b.Active = (b.Active + Pane(len(paneLabels)) - 1) % Pane(len(paneLabels))
}

// View renders the pane bar
func (b PaneBarModel) View() string {
	var tabs []string
	for i, label := range paneLabels {
		p := Pane(i)
		switch p {
		case PaneResults:
			label = fmt.Sprintf("%s (%d)", label, b.Results)
		case PaneSaved:
			label = fmt.Sprintf("%s (%d)", label, b.Saved)
		}

		var style lipgloss.Style
		if p == b.Active {
			style = b.Styles.PaneActive
		} else {
			style = b.Styles.PaneInactive
		}
		tabs = append(tabs, style.Render(label))
	}

	bar := strings.Join(tabs, " ")
	return b.Styles.PaneBar.Width(b.Width).Render(bar)
}
