package tui

import (
	"fmt"
	"strings"
	"time"

	"tweetsaver/internal/widget"
)

// StatusBarModel manages the bottom status bar
type StatusBarModel struct {
	State      widget.State
	Query      string
	SavedCount int
	Following  bool
	LastSearch time.Duration
	SSHUser    string // set for SSH sessions
	Width      int
	Styles     Styles
}

// NewStatusBarModel creates a new status bar
func NewStatusBarModel(styles Styles) StatusBarModel {
	return StatusBarModel{
		Styles: styles,
	}
}

// View renders the status bar
func (s StatusBarModel) View() string {
	var parts []string

	if s.State == widget.StateSearching {
		parts = append(parts, s.Styles.StatusSearching.Render("~ searching"))
	} else {
		parts = append(parts, s.Styles.StatusIdle.Render("* "+s.State.String()))
	}

	if s.Query != "" {
		q := s.Query
		if len(q) > 25 {
			q = q[:22] + "..."
		}
		parts = append(parts, s.Styles.Accent.Render(q))
	}

	if s.LastSearch > 0 {
		parts = append(parts, s.Styles.Muted.Render(formatResponseTime(s.LastSearch)))
	}

	parts = append(parts, s.Styles.Muted.Render(fmt.Sprintf("%d saved", s.SavedCount)))

	if s.Following {
		parts = append(parts, s.Styles.StatusFollowing.Render("following"))
	}

	// SSH indicator
	if s.SSHUser != "" {
		parts = append(parts, s.Styles.Accent.Render(fmt.Sprintf("SSH: %s", s.SSHUser)))
	}

	content := strings.Join(parts, "  |  ")
	return s.Styles.StatusBar.Width(s.Width).Render(content)
}

func formatResponseTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
