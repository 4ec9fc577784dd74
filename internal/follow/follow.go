// Package follow re-runs the current query of registered widgets on a cron
// schedule, so their results panels track a live search.
package follow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultSchedule refreshes once a minute.
const DefaultSchedule = "@every 1m"

// maxConcurrent bounds how many refreshes run at once per tick.
const maxConcurrent = 4

// Refresher is something that can re-run its last search.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Follower owns the cron entry and the set of followed widgets.
type Follower struct {
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	skip     func(error) bool

	mu      sync.Mutex
	targets map[string]Refresher
	entryID cron.EntryID
	running bool
}

// Option customises a Follower.
type Option func(*Follower)

// WithTimeout bounds each tick. Zero means no bound beyond the searcher's own.
func WithTimeout(d time.Duration) Option {
	return func(f *Follower) { f.timeout = d }
}

// WithSkip marks errors that are expected and only logged at debug level,
// such as a widget that has not searched yet.
func WithSkip(fn func(error) bool) Option {
	return func(f *Follower) { f.skip = fn }
}

// New validates schedule (standard five-field or @every/@hourly forms).
func New(schedule string, opts ...Option) (*Follower, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid follow schedule %q: %w", schedule, err)
	}
	f := &Follower{
		cron:     cron.New(),
		schedule: schedule,
		targets:  make(map[string]Refresher),
		skip:     func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Schedule returns the cron expression in use.
func (f *Follower) Schedule() string {
	return f.schedule
}

// Start registers the tick and starts the cron runner.
func (f *Follower) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	id, err := f.cron.AddFunc(f.schedule, func() {
		if err := f.RunNow(context.Background()); err != nil {
			log.Warn().Err(err).Str("component", "follow").Msg("follow tick finished with errors")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule follow: %w", err)
	}
	f.entryID = id
	f.cron.Start()
	f.running = true

	log.Info().Str("component", "follow").Str("schedule", f.schedule).Msg("follow scheduler started")
	return nil
}

// Stop halts the runner and waits for a tick in progress.
func (f *Follower) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.cron.Remove(f.entryID)
	f.running = false
	f.mu.Unlock()

	<-f.cron.Stop().Done()
	log.Info().Str("component", "follow").Msg("follow scheduler stopped")
}

// Next returns the next scheduled tick, or the zero time when stopped.
func (f *Follower) Next() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return time.Time{}
	}
	return f.cron.Entry(f.entryID).Next
}

// Add follows r under id, replacing any previous target with that id.
func (f *Follower) Add(id string, r Refresher) {
	f.mu.Lock()
	f.targets[id] = r
	f.mu.Unlock()
	log.Debug().Str("component", "follow").Str("target", id).Msg("following")
}

// Remove stops following id.
func (f *Follower) Remove(id string) {
	f.mu.Lock()
	delete(f.targets, id)
	f.mu.Unlock()
}

// Following reports whether id is followed.
func (f *Follower) Following(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.targets[id]
	return ok
}

// Len is the number of followed targets.
func (f *Follower) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

// RunNow refreshes every target once. Errors are collected; one target
// failing does not stop the others.
func (f *Follower) RunNow(ctx context.Context) error {
	f.mu.Lock()
	ids := make([]string, 0, len(f.targets))
	for id := range f.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	targets := make([]Refresher, len(ids))
	for i, id := range ids {
		targets[i] = f.targets[id]
	}
	f.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(maxConcurrent)
	for i, r := range targets {
		id := ids[i]
		g.Go(func() error {
			err := r.Refresh(ctx)
			switch {
			case err == nil:
				log.Debug().Str("component", "follow").Str("target", id).Msg("refreshed")
			case f.skip(err):
				log.Debug().Err(err).Str("component", "follow").Str("target", id).Msg("nothing to refresh")
			default:
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
