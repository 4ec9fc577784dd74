package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tweetsaver/internal/render"
	"tweetsaver/internal/results"
	"tweetsaver/internal/tweet"
	"tweetsaver/internal/widget"
)

// Controller is the part of the widget the terminal UI drives.
type Controller interface {
	Search(ctx context.Context, term string) error
	Refresh(ctx context.Context) error
	DragStart(index int) string
	Drop(ctx context.Context, payload string) (widget.DropOutcome, error)
	Delete(ctx context.Context, id string) error
	Current() results.SearchResult
	Saved(ctx context.Context) ([]tweet.Record, error)
	Page() widget.Snapshot
}

// ModelConfig holds the configuration for creating a new TUI model
type ModelConfig struct {
	Controller Controller
	Context    context.Context
	// FollowInterval is how often a followed query is re-run. Zero disables
	// the follow key.
	FollowInterval time.Duration
	// Now is the clock used for relative dates. Defaults to time.Now.
	Now func() time.Time
	// Renderer is the Lip Gloss renderer to use for styling. Over SSH, pass the
	// renderer from wishbubbletea.MakeRenderer so colors work correctly. If nil,
	// the default renderer (local terminal) is used.
	Renderer *lipgloss.Renderer
}

// Notice is the one-line banner under the search input.
type Notice struct {
	Text     string
	Severity render.Severity
}

// Model is the root BubbleTea model
type Model struct {
	config ModelConfig
	ctrl   Controller
	ctx    context.Context
	styles Styles

	// Sub-models
	paneBar   PaneBarModel
	statusBar StatusBarModel
	input     textinput.Model
	results   ListViewModel
	saved     ListViewModel

	notice    Notice
	following bool
	started   time.Time

	width    int
	height   int
	quitting bool
}

// NewModel creates the root TUI model
func NewModel(config ModelConfig) Model {
	r := config.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(r)

	ctx := config.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ti := textinput.New()
	ti.Placeholder = "Search tweets... (Enter to search)"
	ti.Prompt = "> "
	ti.CharLimit = 140
	ti.Width = 60
	ti.Cursor.Style = styles.WhiteCursor
	ti.Focus()

	m := Model{
		config:    config,
		ctrl:      config.Controller,
		ctx:       ctx,
		styles:    styles,
		paneBar:   NewPaneBarModel(styles),
		statusBar: NewStatusBarModel(styles),
		input:     ti,
		results:   NewListViewModel(styles, "Search for something to see tweets here.", config.Now),
		saved:     NewListViewModel(styles, "Save tweets from the results with Enter.", config.Now),
	}
	return m
}

// Init loads the saved panel
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadSavedCmd())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		if m.quitting {
			return m, tea.Quit
		}
		if handled {
			return m, cmd
		}

	case SearchDoneMsg:
		m.statusBar.State = msg.Page.State
		m.statusBar.Query = msg.Page.Query
		m.statusBar.SavedCount = msg.Page.SavedCount
		if msg.Elapsed > 0 {
			m.statusBar.LastSearch = msg.Elapsed
		}
		m.results.SetRecords(msg.Results)
		m.paneBar.Results = len(msg.Results)
		m.notice = noticeFromPage(msg.Page)
		if msg.Err == nil && len(msg.Results) > 0 && m.paneBar.Active == PaneSearch {
			m.focus(PaneResults)
		}
		return m, nil

	case SavedMsg:
		m.statusBar.SavedCount = msg.Page.SavedCount
		if msg.Saved != nil {
			m.saved.SetRecords(msg.Saved)
			m.paneBar.Saved = len(msg.Saved)
		}
		m.notice = m.savedNotice(msg)
		return m, nil

	case FollowTickMsg:
		if !m.following {
			return m, nil
		}
		return m, tea.Batch(m.refreshCmd(), m.followTickCmd())
	}

	if m.paneBar.Active == PaneSearch {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKeyMsg processes keyboard input.
// Returns (cmd, handled) where handled=true prevents the text input from also processing the key.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return tea.Quit, true
	case "tab":
		m.paneBar.Next()
		m.focus(m.paneBar.Active)
		return nil, true
	case "shift+tab":
		m.paneBar.Prev()
		m.focus(m.paneBar.Active)
		return nil, true
	case "pgup":
		m.activeList().Viewport.HalfViewUp()
		return nil, true
	case "pgdown":
		m.activeList().Viewport.HalfViewDown()
		return nil, true
	}

	if m.paneBar.Active == PaneSearch {
		switch key {
		case "enter":
			term := m.input.Value()
			m.statusBar.State = widget.StateSearching
			return m.searchCmd(term), true
		case "esc":
			m.focus(PaneResults)
			return nil, true
		}
		return nil, false
	}

	switch key {
	case "q":
		m.quitting = true
		return tea.Quit, true
	case "/":
		m.focus(PaneSearch)
		return nil, true
	case "up", "k":
		m.activeList().Up()
		return nil, true
	case "down", "j":
		m.activeList().Down()
		return nil, true
	case "r":
		m.statusBar.State = widget.StateSearching
		return m.refreshCmd(), true
	case "f":
		return m.toggleFollow(), true
	}

	switch m.paneBar.Active {
	case PaneResults:
		if key == "enter" || key == "s" {
			if _, ok := m.results.Selected(); !ok {
				return nil, true
			}
			return m.dropCmd(m.results.Cursor), true
		}
	case PaneSaved:
		if key == "d" || key == "x" || key == "delete" {
			rec, ok := m.saved.Selected()
			if !ok {
				return nil, true
			}
			return m.deleteCmd(rec.ID), true
		}
	}
	return nil, true
}

func (m *Model) focus(p Pane) {
	m.paneBar.Active = p
	m.results.Focused = p == PaneResults
	m.saved.Focused = p == PaneSaved
	m.results.refreshContent()
	m.saved.refreshContent()
	if p == PaneSearch {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) activeList() *ListViewModel {
	if m.paneBar.Active == PaneSaved {
		return &m.saved
	}
	return &m.results
}

func (m *Model) toggleFollow() tea.Cmd {
	if m.config.FollowInterval <= 0 {
		m.notice = Notice{Text: "Follow is not enabled.", Severity: render.SeverityWarning}
		return nil
	}
	m.following = !m.following
	m.statusBar.Following = m.following
	if !m.following {
		m.notice = Notice{Text: "Stopped following.", Severity: render.SeverityInfo}
		return nil
	}
	m.notice = Notice{Text: fmt.Sprintf("Following, refreshing every %s.", m.config.FollowInterval), Severity: render.SeverityInfo}
	return m.followTickCmd()
}

func (m Model) followTickCmd() tea.Cmd {
	return tea.Tick(m.config.FollowInterval, func(time.Time) tea.Msg {
		return FollowTickMsg{}
	})
}

func (m Model) searchCmd(term string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		start := time.Now()
		err := ctrl.Search(ctx, term)
		return SearchDoneMsg{
			Page:    ctrl.Page(),
			Results: ctrl.Current().Records,
			Elapsed: time.Since(start),
			Err:     err,
		}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		start := time.Now()
		err := ctrl.Refresh(ctx)
		if errors.Is(err, widget.ErrNoQuery) {
			return SearchDoneMsg{Page: ctrl.Page(), Results: ctrl.Current().Records}
		}
		return SearchDoneMsg{
			Page:    ctrl.Page(),
			Results: ctrl.Current().Records,
			Elapsed: time.Since(start),
			Err:     err,
		}
	}
}

func (m Model) loadSavedCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		saved, err := ctrl.Saved(ctx)
		return SavedMsg{Page: ctrl.Page(), Saved: saved, Action: "load", Err: err}
	}
}

func (m Model) dropCmd(index int) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		outcome, err := ctrl.Drop(ctx, ctrl.DragStart(index))
		msg := SavedMsg{Outcome: outcome, Action: "drop", Err: err}
		if err == nil {
			msg.Saved, msg.Err = ctrl.Saved(ctx)
		}
		msg.Page = ctrl.Page()
		return msg
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		msg := SavedMsg{Action: "delete", Err: ctrl.Delete(ctx, id)}
		if msg.Err == nil {
			msg.Saved, msg.Err = ctrl.Saved(ctx)
		}
		msg.Page = ctrl.Page()
		return msg
	}
}

func (m Model) savedNotice(msg SavedMsg) Notice {
	if msg.Err != nil {
		return Notice{Text: "Error: " + msg.Err.Error(), Severity: render.SeverityError}
	}
	switch msg.Action {
	case "drop":
		switch msg.Outcome {
		case widget.DropSaved:
			return Notice{Text: "Tweet saved.", Severity: render.SeveritySuccess}
		case widget.DropDuplicate:
			return Notice{Text: "That tweet is already saved.", Severity: render.SeverityWarning}
		default:
			return Notice{Text: "Nothing to save there.", Severity: render.SeverityWarning}
		}
	case "delete":
		return Notice{Text: "Saved tweet deleted.", Severity: render.SeverityInfo}
	}
	return m.notice
}

// noticeFromPage turns the first alert on the page into a banner.
func noticeFromPage(page widget.Snapshot) Notice {
	if len(page.Alerts) == 0 {
		return Notice{}
	}
	return alertNotice(page.Alerts[0])
}

func alertNotice(markup string) Notice {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Notice{Text: markup, Severity: render.SeverityInfo}
	}
	doc.Find("button.close").Remove()

	n := Notice{
		Text:     strings.Join(strings.Fields(doc.Text()), " "),
		Severity: render.SeverityInfo,
	}
	alert := doc.Find(".alert").First()
	for _, sev := range []render.Severity{render.SeverityError, render.SeverityWarning, render.SeveritySuccess} {
		if alert.HasClass("alert-" + string(sev)) {
			n.Severity = sev
			break
		}
	}
	return n
}

func (m Model) noticeView() string {
	if m.notice.Text == "" {
		return ""
	}
	var style lipgloss.Style
	switch m.notice.Severity {
	case render.SeverityError:
		style = m.styles.AlertError
	case render.SeverityWarning:
		style = m.styles.AlertWarning
	case render.SeveritySuccess:
		style = m.styles.AlertSuccess
	default:
		style = m.styles.AlertInfo
	}
	return style.Render(m.notice.Text)
}

// updateLayout recalculates sub-model dimensions
func (m *Model) updateLayout() {
	paneBarHeight := 2 // pane bar + border
	inputHeight := 2   // input + border
	noticeHeight := 1
	statusBarHeight := 1

	bodyHeight := m.height - paneBarHeight - inputHeight - noticeHeight - statusBarHeight
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	resultsWidth := m.width * 3 / 5
	savedWidth := m.width - resultsWidth - 1
	if savedWidth < 20 {
		savedWidth = 20
	}

	m.paneBar.Width = m.width
	m.statusBar.Width = m.width
	m.input.Width = m.width - 4
	m.results.SetSize(resultsWidth, bodyHeight)
	m.saved.SetSize(savedWidth, bodyHeight)
}

// View renders the entire TUI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.results.View(),
		m.styles.Muted.Render(" "),
		m.saved.View(),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.paneBar.View(),
		m.styles.InputStyle.Width(m.width).Render(m.input.View()),
		m.noticeView(),
		body,
		m.statusBar.View(),
	)
}

// SetSSHUser sets the SSH user for display in the status bar
func (m *Model) SetSSHUser(user string) {
	m.statusBar.SSHUser = user
}
