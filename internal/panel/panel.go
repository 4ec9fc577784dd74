// Package panel holds the widget page as a goquery document and exposes the
// handful of mutations the controller performs on it.
package panel

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/page.html
var defaultLayout string

// Default container selectors.
const (
	DefaultResultSelector      = "#search-results"
	DefaultSavedSelector       = "#saved-tweets"
	DefaultPlaceholderSelector = "#saved-results .placeholder"
)

// ErrMissingContainer is returned when a selector matches nothing in the layout.
var ErrMissingContainer = errors.New("container not found in page layout")

// Selectors names the containers the page is expected to have.
type Selectors struct {
	Results     string
	Saved       string
	Placeholder string
}

func (s Selectors) withDefaults() Selectors {
	if s.Results == "" {
		s.Results = DefaultResultSelector
	}
	if s.Saved == "" {
		s.Saved = DefaultSavedSelector
	}
	if s.Placeholder == "" {
		s.Placeholder = DefaultPlaceholderSelector
	}
	return s
}

// Page is the widget document. It is not safe for concurrent use.
type Page struct {
	doc         *goquery.Document
	results     *goquery.Selection
	saved       *goquery.Selection
	placeholder *goquery.Selection
}

// DefaultLayout returns the embedded page markup.
func DefaultLayout() string {
	return defaultLayout
}

// New parses layout (the embedded page when empty) and resolves the
// containers named by sel.
func New(layout string, sel Selectors) (*Page, error) {
	if layout == "" {
		layout = defaultLayout
	}
	sel = sel.withDefaults()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(layout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page layout: %w", err)
	}

	p := &Page{doc: doc}
	for _, c := range []struct {
		selector string
		dst      **goquery.Selection
	}{
		{sel.Results, &p.results},
		{sel.Saved, &p.saved},
		{sel.Placeholder, &p.placeholder},
	} {
		found := doc.Find(c.selector).First()
		if found.Length() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingContainer, c.selector)
		}
		*c.dst = found
	}

	return p, nil
}

// SetResults replaces the results panel content, dropping any alerts.
func (p *Page) SetResults(markup string) {
	p.results.SetHtml(markup)
}

// ShowAlert removes earlier alerts and prepends markup to the results panel.
func (p *Page) ShowAlert(markup string) {
	p.ClearAlerts()
	p.results.PrependHtml(markup)
}

// ClearAlerts removes every alert from the results panel.
func (p *Page) ClearAlerts() {
	p.results.Find(".alert").Remove()
}

// Alerts returns the outer markup of each alert currently shown.
func (p *Page) Alerts() []string {
	var out []string
	p.results.Find(".alert").Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			out = append(out, h)
		}
	})
	return out
}

// AppendSaved adds markup to the saved panel inside a wrapper carrying the
// record id and a close button.
func (p *Page) AppendSaved(id, markup string) {
	esc := html.EscapeString(id)
	p.saved.AppendHtml(`<div class="saved-tweet" data-id="` + esc + `">` +
		`<button type="button" class="close" data-action="delete" data-id="` + esc + `">&times;</button>` +
		markup + `</div>`)
}

// RemoveSaved removes the saved node for id and reports whether one existed.
func (p *Page) RemoveSaved(id string) bool {
	node := p.savedNode(id)
	if node.Length() == 0 {
		return false
	}
	node.Remove()
	return true
}

// HasSaved reports whether a saved node for id is present.
func (p *Page) HasSaved(id string) bool {
	return p.savedNode(id).Length() > 0
}

func (p *Page) savedNode(id string) *goquery.Selection {
	return p.saved.Children().FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("data-id")
		return ok && v == id
	})
}

// SavedIDs returns the ids of the saved nodes in document order.
func (p *Page) SavedIDs() []string {
	var ids []string
	p.saved.Children().Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-id"); ok {
			ids = append(ids, v)
		}
	})
	return ids
}

// SavedLen is the number of saved nodes.
func (p *Page) SavedLen() int {
	return p.saved.Children().Length()
}

// ClearSaved empties the saved panel.
func (p *Page) ClearSaved() {
	p.saved.Empty()
}

// SetPlaceholder shows or hides the "nothing saved" placeholder.
func (p *Page) SetPlaceholder(visible bool) {
	if visible {
		p.placeholder.RemoveAttr("hidden")
	} else {
		p.placeholder.SetAttr("hidden", "hidden")
	}
}

// PlaceholderVisible reports whether the placeholder is shown.
func (p *Page) PlaceholderVisible() bool {
	_, hidden := p.placeholder.Attr("hidden")
	return !hidden
}

// Results returns the inner markup of the results panel.
func (p *Page) Results() string {
	h, _ := p.results.Html()
	return h
}

// SavedHTML returns the inner markup of the saved panel.
func (p *Page) SavedHTML() string {
	h, _ := p.saved.Html()
	return h
}

// HTML returns the whole document.
func (p *Page) HTML() (string, error) {
	return p.doc.Html()
}
