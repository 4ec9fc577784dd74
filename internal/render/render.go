// Package render turns tweet records into markup from a user-supplied
// template, plus the alert and no-result banners.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"time"

	"tweetsaver/internal/results"
	"tweetsaver/internal/tweet"
)

//go:embed templates/tweet.html
var defaultTweetTemplate string

const (
	// DefaultAlertTemplate renders a dismissable banner; Message is trusted markup.
	DefaultAlertTemplate = `<div class="alert alert-{{.Type}}"><button type="button" class="close" data-dismiss="alert">&times;</button>{{.Message}}</div>`
	// DefaultNoResultTemplate is shown when a search comes back empty.
	DefaultNoResultTemplate = `No results found for <strong>"{{.Query}}"</strong>`
)

// Severity selects the alert style.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Options configures a Renderer. Zero values fall back to the defaults.
type Options struct {
	TemplatePath     string
	AlertTemplate    string
	NoResultTemplate string
	Now              func() time.Time
}

// Renderer holds the compiled templates.
type Renderer struct {
	single   *template.Template
	multiple *template.Template
	alert    *template.Template
	noResult *template.Template
	source   string
	now      func() time.Time
}

type manyData struct {
	Query    string
	Results  []DisplayRecord
	Moveable bool
}

type alertData struct {
	Type    Severity
	Message template.HTML
}

// New loads the record template from opts.TemplatePath (the embedded default
// when empty) and compiles every template once.
func New(opts Options) (*Renderer, error) {
	src := defaultTweetTemplate
	if opts.TemplatePath != "" {
		data, err := os.ReadFile(opts.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", opts.TemplatePath, err)
		}
		src = string(data)
	}
	return NewFromString(src, opts)
}

// NewFromString compiles src as the single-record layout. The multi-record
// layout is src wrapped in a range over Results.
func NewFromString(src string, opts Options) (*Renderer, error) {
	single, err := template.New("tweet").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tweet template: %w", err)
	}
	multiple, err := template.New("tweets").Parse("{{range .Results}}" + src + "{{end}}")
	if err != nil {
		return nil, fmt.Errorf("failed to parse tweet list template: %w", err)
	}

	alertSrc := opts.AlertTemplate
	if alertSrc == "" {
		alertSrc = DefaultAlertTemplate
	}
	alert, err := template.New("alert").Parse(alertSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse alert template: %w", err)
	}

	noResultSrc := opts.NoResultTemplate
	if noResultSrc == "" {
		noResultSrc = DefaultNoResultTemplate
	}
	noResult, err := template.New("noresult").Parse(noResultSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse no-result template: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Renderer{
		single:   single,
		multiple: multiple,
		alert:    alert,
		noResult: noResult,
		source:   src,
		now:      now,
	}, nil
}

// Source returns the single-record template text.
func (r *Renderer) Source() string {
	return r.source
}

// Augment computes the display fields for rec using the renderer's clock.
func (r *Renderer) Augment(rec tweet.Record) DisplayRecord {
	return Augment(rec, r.now())
}

// RenderOne renders a single record, as used for the saved panel.
func (r *Renderer) RenderOne(rec tweet.Record) (template.HTML, error) {
	return execute(r.single, r.Augment(rec))
}

// RenderMany renders a whole result set with drag attributes enabled.
func (r *Renderer) RenderMany(result results.SearchResult) (template.HTML, error) {
	now := r.now()
	data := manyData{
		Query:    result.Query,
		Results:  make([]DisplayRecord, 0, len(result.Records)),
		Moveable: true,
	}
	for _, rec := range result.Records {
		d := Augment(rec, now)
		d.Moveable = true
		data.Results = append(data.Results, d)
	}
	return execute(r.multiple, data)
}

// RenderError renders an alert banner. An empty severity means info.
func (r *Renderer) RenderError(message template.HTML, severity Severity) (template.HTML, error) {
	if severity == "" {
		severity = SeverityInfo
	}
	return execute(r.alert, alertData{Type: severity, Message: message})
}

// RenderNoResults renders the no-result message for query.
func (r *Renderer) RenderNoResults(query string) (template.HTML, error) {
	return execute(r.noResult, struct{ Query string }{Query: query})
}

func execute(t *template.Template, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return template.HTML(buf.String()), nil
}
