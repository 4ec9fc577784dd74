package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"

	"tweetsaver/internal/render"
	"tweetsaver/internal/tweet"
)

// ListViewModel is a scrollable tweet list with a cursor.
type ListViewModel struct {
	Records  []tweet.Record
	Cursor   int
	Focused  bool
	Empty    string
	Viewport viewport.Model
	Width    int
	Height   int
	Styles   Styles
	Now      func() time.Time
}

// NewListViewModel creates an empty list. empty is shown when there are no
// records.
func NewListViewModel(styles Styles, empty string, now func() time.Time) ListViewModel {
	if now == nil {
		now = time.Now
	}
	vp := viewport.New(80, 20)
	vp.SetContent("")
	return ListViewModel{
		Viewport: vp,
		Styles:   styles,
		Empty:    empty,
		Now:      now,
	}
}

// SetSize updates the viewport dimensions
func (l *ListViewModel) SetSize(width, height int) {
	l.Width = width
	l.Height = height
	l.Viewport.Width = width
	l.Viewport.Height = height
	l.refreshContent()
}

// SetRecords replaces the list, keeping the cursor in range.
func (l *ListViewModel) SetRecords(records []tweet.Record) {
	l.Records = records
	if l.Cursor >= len(records) {
		l.Cursor = len(records) - 1
	}
	if l.Cursor < 0 {
		l.Cursor = 0
	}
	l.refreshContent()
}

// Selected returns the record under the cursor.
func (l ListViewModel) Selected() (tweet.Record, bool) {
	if l.Cursor < 0 || l.Cursor >= len(l.Records) {
		return tweet.Record{}, false
	}
	return l.Records[l.Cursor], true
}

// Up moves the cursor up one record.
func (l *ListViewModel) Up() {
	if l.Cursor > 0 {
		l.Cursor--
		l.refreshContent()
	}
}

// Down moves the cursor down one record.
func (l *ListViewModel) Down() {
	if l.Cursor < len(l.Records)-1 {
		l.Cursor++
		l.refreshContent()
	}
}

func (l *ListViewModel) refreshContent() {
	if len(l.Records) == 0 {
		l.Viewport.SetContent(l.Styles.Empty.Render(l.Empty))
		l.Viewport.GotoTop()
		return
	}

	now := l.Now()
	width := l.Width - 4
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	start, end := 0, 0
	line := 0
	for i, rec := range l.Records {
		item := l.renderRecord(rec, now, width)
		if i == l.Cursor && l.Focused {
			item = l.Styles.Selected.Render(item)
		} else {
			item = "  " + strings.ReplaceAll(item, "\n", "\n  ")
		}
		n := strings.Count(item, "\n") + 1
		if i == l.Cursor {
			start, end = line, line+n
		}
		b.WriteString(item)
		b.WriteString("\n\n")
		line += n + 1
	}
	l.Viewport.SetContent(b.String())

	// Keep the cursor on screen.
	if start < l.Viewport.YOffset {
		l.Viewport.SetYOffset(start)
	} else if end > l.Viewport.YOffset+l.Viewport.Height {
		l.Viewport.SetYOffset(end - l.Viewport.Height)
	}
}

func (l ListViewModel) renderRecord(rec tweet.Record, now time.Time, width int) string {
	header := l.Styles.User.Render("@" + rec.FromUser)
	if phrase, ok := render.RelativeDate(rec.CreatedAt, now); ok {
		header += " " + l.Styles.Date.Render(phrase)
	}
	if rec.IsReply() {
		header += " " + l.Styles.Reply.Render("in reply to @"+rec.ToUser)
	}
	body := l.Styles.Text.Width(width).Render(rec.Text)
	return header + "\n" + body
}

// View renders the list
func (l ListViewModel) View() string {
	return l.Viewport.View()
}
