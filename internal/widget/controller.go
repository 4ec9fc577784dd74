// Package widget is the tweet saver controller: it drives searches, owns the
// current result set and moves records between the results panel and the
// saved set.
package widget

import (
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"tweetsaver/internal/panel"
	"tweetsaver/internal/render"
	"tweetsaver/internal/results"
	"tweetsaver/internal/search"
	"tweetsaver/internal/tweet"
)

// EmptyQueryMessage is shown when a search is submitted without a term.
const EmptyQueryMessage = "Please enter a search term!"

var (
	// ErrEmptyQuery is returned by Submit for a blank term.
	ErrEmptyQuery = errors.New("empty search term")
	// ErrNoQuery is returned by Refresh before any search was submitted.
	ErrNoQuery = errors.New("no previous search to refresh")
)

// Searcher fetches the raw payload for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

// SavedStore is the durable saved set.
type SavedStore interface {
	LoadAll(ctx context.Context) ([]tweet.Record, error)
	Save(ctx context.Context, rec tweet.Record) error
	Exists(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
}

// Options configures a Controller.
type Options struct {
	Limit     int
	Layout    string
	Selectors panel.Selectors
}

// Controller is one widget instance. All methods are safe for concurrent use;
// the network request itself runs without holding the lock.
type Controller struct {
	mu sync.Mutex

	searcher Searcher
	store    SavedStore
	renderer *render.Renderer
	page     *panel.Page
	limit    int

	state     State
	drag      DragState
	seq       uint64
	pending   string
	current   results.SearchResult
	lastQuery string

	onUpdate func(Snapshot)
}

// New builds a controller over its collaborators. Call Load to populate the
// saved panel.
func New(searcher Searcher, store SavedStore, renderer *render.Renderer, opts Options) (*Controller, error) {
	page, err := panel.New(opts.Layout, opts.Selectors)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = results.DefaultLimit
	}
	return &Controller{
		searcher: searcher,
		store:    store,
		renderer: renderer,
		page:     page,
		limit:    limit,
	}, nil
}

// OnUpdate registers fn to be called with a fresh snapshot after every
// change applied to the page. fn runs outside the controller lock.
func (c *Controller) OnUpdate(fn func(Snapshot)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Load renders every saved record into the saved panel.
func (c *Controller) Load(ctx context.Context) error {
	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load saved tweets: %w", err)
	}

	c.mu.Lock()
	c.page.ClearSaved()
	for _, rec := range records {
		markup, err := c.renderer.RenderOne(rec)
		if err != nil {
			log.Warn().Err(err).Str("component", "widget").Str("id", rec.ID).Msg("skipping saved tweet that failed to render")
			continue
		}
		c.page.AppendSaved(rec.ID, string(markup))
	}
	c.page.SetPlaceholder(c.page.SavedLen() == 0)
	c.mu.Unlock()

	log.Debug().Str("component", "widget").Int("saved", len(records)).Msg("saved panel loaded")
	c.notify()
	return nil
}

// Submit validates term and issues a new request. A blank term shows an
// error alert and leaves the state unchanged.
func (c *Controller) Submit(term string) (Request, error) {
	term = strings.TrimSpace(term)

	c.mu.Lock()
	if term == "" {
		c.showErrorLocked(EmptyQueryMessage, render.SeverityError)
		c.mu.Unlock()
		c.notify()
		return Request{}, ErrEmptyQuery
	}
	req := c.nextRequestLocked(term)
	c.mu.Unlock()

	log.Debug().Str("component", "widget").Uint64("seq", req.Seq).Str("query", term).Msg("search submitted")
	c.notify()
	return req, nil
}

func (c *Controller) nextRequestLocked(term string) Request {
	c.seq++
	c.state = StateSearching
	c.pending = term
	c.lastQuery = term
	return Request{Seq: c.seq, Query: term}
}

// Fetch performs the request once.
func (c *Controller) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return c.searcher.Search(ctx, req.Query)
}

// Deliver applies the outcome of req to the page. It returns false when a
// newer request has been issued since, in which case nothing changes.
func (c *Controller) Deliver(req Request, raw []byte, fetchErr error) bool {
	c.mu.Lock()
	if req.Seq != c.seq {
		c.mu.Unlock()
		log.Debug().Str("component", "widget").Uint64("seq", req.Seq).Str("query", req.Query).Msg("dropping stale search response")
		return false
	}

	c.state = StateDisplaying
	c.pending = ""

	if fetchErr != nil {
		log.Warn().Err(fetchErr).Str("component", "widget").Str("query", req.Query).Msg("search request failed")
		c.clearResultsLocked(req.Query)
		c.showErrorLocked(describeFetchError(fetchErr), render.SeverityError)
		c.mu.Unlock()
		c.notify()
		return true
	}

	switch resp := results.Process(raw, c.limit).(type) {
	case results.Ok:
		markup, err := c.renderer.RenderMany(resp.Result)
		if err != nil {
			log.Error().Err(err).Str("component", "widget").Msg("failed to render results")
			c.clearResultsLocked(req.Query)
			c.showErrorLocked("Could not display the results.", render.SeverityError)
			break
		}
		c.current = resp.Result
		c.page.SetResults(string(markup))
	case results.Err:
		if resp.Parse {
			log.Warn().Str("component", "widget").Str("query", req.Query).Str("error", resp.Description).Msg("unreadable search response")
			c.clearResultsLocked(req.Query)
			c.showErrorLocked("The search response could not be read.", render.SeverityError)
			break
		}
		query := resp.Query
		if query == "" {
			query = req.Query
		}
		c.clearResultsLocked(query)
		msg, err := c.renderer.RenderNoResults(query)
		if err != nil {
			log.Error().Err(err).Str("component", "widget").Msg("failed to render no-result message")
			msg = template.HTML(html.EscapeString("No results found for " + query))
		}
		c.showAlertLocked(msg, render.SeverityInfo)
	}
	c.mu.Unlock()

	c.notify()
	return true
}

// Search runs Submit, Fetch and Deliver in sequence.
func (c *Controller) Search(ctx context.Context, term string) error {
	req, err := c.Submit(term)
	if err != nil {
		return err
	}
	raw, fetchErr := c.Fetch(ctx, req)
	c.Deliver(req, raw, fetchErr)
	return fetchErr
}

// clearResultsLocked empties the results panel so drops cannot resolve
// against a result set that is no longer shown.
func (c *Controller) clearResultsLocked(query string) {
	c.current = results.SearchResult{Query: query}
	c.page.SetResults("")
}

// Refresh re-runs the most recently submitted query. It does nothing while
// a search is in flight, so it never supersedes one.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.lastQuery == "" {
		c.mu.Unlock()
		return ErrNoQuery
	}
	if c.state == StateSearching {
		pending := c.pending
		c.mu.Unlock()
		log.Debug().Str("component", "widget").Str("query", pending).Msg("search in flight, skipping refresh")
		return nil
	}
	req := c.nextRequestLocked(c.lastQuery)
	c.mu.Unlock()

	c.notify()
	raw, fetchErr := c.Fetch(ctx, req)
	c.Deliver(req, raw, fetchErr)
	return fetchErr
}

// DragStart returns the transfer payload for the result at index.
func (c *Controller) DragStart(index int) string {
	c.mu.Lock()
	c.drag = DragDragging
	c.mu.Unlock()
	return strconv.Itoa(index)
}

// Drop saves the record that payload points at in the current result set.
// Rejected drops leave the store and page untouched.
func (c *Controller) Drop(ctx context.Context, payload string) (DropOutcome, error) {
	outcome, err := c.drop(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Str("component", "widget").Str("payload", payload).Msg("drop failed")
		return outcome, err
	}
	if outcome != DropSaved {
		log.Debug().Str("component", "widget").Str("payload", payload).Stringer("outcome", outcome).Msg("drop rejected")
		return outcome, nil
	}
	c.notify()
	return outcome, nil
}

func (c *Controller) drop(ctx context.Context, payload string) (DropOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = DragNone

	if _, err := strconv.Atoi(strings.TrimSpace(payload)); err != nil {
		return DropBadPayload, nil
	}
	rec, ok := c.recordLocked(payload)
	if !ok {
		return DropMissing, nil
	}

	exists, err := c.store.Exists(ctx, rec.ID)
	if err != nil {
		return DropMissing, fmt.Errorf("failed to check saved tweet %s: %w", rec.ID, err)
	}
	if exists || c.page.HasSaved(rec.ID) {
		return DropDuplicate, nil
	}

	if err := c.saveAndAppendLocked(ctx, rec); err != nil {
		return DropMissing, err
	}
	c.drag = DragDropped

	log.Info().Str("component", "widget").Str("id", rec.ID).Msg("tweet saved")
	return DropSaved, nil
}

func (c *Controller) saveAndAppendLocked(ctx context.Context, rec tweet.Record) error {
	markup, err := c.renderer.RenderOne(rec)
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save tweet %s: %w", rec.ID, err)
	}
	c.page.SetPlaceholder(false)
	c.page.AppendSaved(rec.ID, string(markup))
	return nil
}

// Delete removes id from the store and, once the removal is verified, from
// the saved panel.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.store.Remove(ctx, id); err != nil {
		log.Warn().Err(err).Str("component", "widget").Str("id", id).Msg("saved tweet not removed")
		return err
	}

	c.mu.Lock()
	c.page.RemoveSaved(id)
	if c.page.SavedLen() == 0 {
		c.page.SetPlaceholder(true)
	}
	c.mu.Unlock()

	log.Info().Str("component", "widget").Str("id", id).Msg("saved tweet deleted")
	c.notify()
	return nil
}

// ShowError renders message as an alert. message is trusted markup.
func (c *Controller) ShowError(message template.HTML, severity render.Severity) {
	c.mu.Lock()
	c.showAlertLocked(message, severity)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) showErrorLocked(text string, severity render.Severity) {
	c.showAlertLocked(template.HTML(html.EscapeString(text)), severity)
}

func (c *Controller) showAlertLocked(message template.HTML, severity render.Severity) {
	markup, err := c.renderer.RenderError(message, severity)
	if err != nil {
		log.Error().Err(err).Str("component", "widget").Msg("failed to render alert")
		return
	}
	c.page.ShowAlert(string(markup))
}

// Record looks up a record of the current result set by its index string.
func (c *Controller) Record(index string) (tweet.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordLocked(index)
}

func (c *Controller) recordLocked(index string) (tweet.Record, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil {
		return tweet.Record{}, false
	}
	rec, ok := c.current.Lookup(i)
	if !ok || rec.ID == "" {
		return tweet.Record{}, false
	}
	return rec, true
}

// RenderIndex renders the record at index. When store is set the record is
// also written to the saved set. The bool is false for an unknown index.
func (c *Controller) RenderIndex(ctx context.Context, index string, store bool) (template.HTML, bool, error) {
	rec, ok := c.Record(index)
	if !ok {
		return "", false, nil
	}
	if store {
		if err := c.store.Save(ctx, rec); err != nil {
			return "", true, fmt.Errorf("failed to save tweet %s: %w", rec.ID, err)
		}
	}
	markup, err := c.renderer.RenderOne(rec)
	if err != nil {
		return "", true, err
	}
	return markup, true, nil
}

// State returns the search state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Drag returns the drag state.
func (c *Controller) Drag() DragState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drag
}

// Current returns the result set drops resolve against.
func (c *Controller) Current() results.SearchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.current
	out.Records = append([]tweet.Record(nil), c.current.Records...)
	return out
}

// Saved returns the saved set in save order.
func (c *Controller) Saved(ctx context.Context) ([]tweet.Record, error) {
	return c.store.LoadAll(ctx)
}

// LastQuery returns the most recently submitted query.
func (c *Controller) LastQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuery
}

// Page returns a snapshot of the panels.
func (c *Controller) Page() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Document returns the whole page markup.
func (c *Controller) Document() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.HTML()
}

func (c *Controller) snapshotLocked() Snapshot {
	query := c.pending
	if query == "" {
		query = c.current.Query
	}
	return Snapshot{
		State:              c.state,
		Query:              query,
		ResultsHTML:        c.page.Results(),
		SavedHTML:          c.page.SavedHTML(),
		SavedCount:         c.page.SavedLen(),
		PlaceholderVisible: c.page.PlaceholderVisible(),
		Alerts:             c.page.Alerts(),
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	var snap Snapshot
	if fn != nil {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func describeFetchError(err error) string {
	switch {
	case errors.Is(err, search.ErrAPIRateLimit):
		return "Search rate limit reached, try again shortly."
	case errors.Is(err, search.ErrNetworkTimeout), errors.Is(err, context.DeadlineExceeded):
		return "The search timed out."
	case errors.Is(err, search.ErrAPIUnauthorized):
		return "The search endpoint refused the request."
	case errors.Is(err, search.ErrNetworkError):
		return "Could not reach the search service."
	default:
		return "Search failed: " + err.Error()
	}
}
