package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"tweetsaver/internal/config"
	"tweetsaver/internal/datadir"
	"tweetsaver/internal/follow"
	"tweetsaver/internal/logging"
	"tweetsaver/internal/panel"
	"tweetsaver/internal/render"
	"tweetsaver/internal/search"
	internalssh "tweetsaver/internal/ssh"
	"tweetsaver/internal/store"
	"tweetsaver/internal/version"
	"tweetsaver/internal/widget"
)

// app is everything a command needs, built once from flags and config.
type app struct {
	cfg      *config.Config
	cfgPath  string
	dataDir  *datadir.DataDir
	store    *store.Store
	client   *search.Client
	renderer *render.Renderer
	layout   string
}

// loadApp resolves the data directory, loads .env files and config, sets up
// logging and opens the store.
func loadApp() (*app, error) {
	dd, err := datadir.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	// .env first so ${VAR} references in the config resolve.
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		log.Warn().Err(err).Msg("failed to load .env files")
	}

	path := cfgFile
	if path == "" {
		path = dd.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logging.Setup(logging.Options{Level: level, Verbose: verbose})

	if cfg.DataDir != "" {
		if dd, err = datadir.New(cfg.DataDir); err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}
	if err := dd.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	internalssh.DataDirConfig = cfg.DataDir

	a := &app{cfg: cfg, cfgPath: path, dataDir: dd}

	if cfg.Widget.Layout != "" {
		data, err := os.ReadFile(cfg.Widget.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to read page layout: %w", err)
		}
		a.layout = string(data)
	}

	a.renderer, err = render.New(render.Options{
		TemplatePath:     cfg.Widget.Template,
		AlertTemplate:    cfg.Widget.Alert,
		NoResultTemplate: cfg.Widget.NoResult,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	userAgent := cfg.Search.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	a.client = search.NewClient(search.ClientConfig{
		Endpoint:          cfg.Search.Endpoint,
		Callback:          cfg.Search.Callback,
		Limit:             cfg.Widget.Limit,
		Timeout:           cfg.Search.Timeout(),
		MaxRetries:        cfg.Search.MaxRetries,
		RetryDelay:        cfg.Search.RetryDelay(),
		RequestsPerMinute: cfg.Search.RequestsPerMinute,
		UserAgent:         userAgent,
	}, search.CacheConfig{
		TTLMinutes: cfg.Search.CacheTTLMinutes,
		Enabled:    cfg.Search.CacheTTLMinutes > 0,
	})

	dbFile := dbPath
	if dbFile == "" {
		dbFile = cfg.Database.Path
	}
	if dbFile == "" {
		dbFile = dd.DatabasePath()
	}
	a.store, err = store.Open(dbFile)
	if err != nil {
		a.client.Close()
		return nil, fmt.Errorf("failed to open saved tweet store: %w", err)
	}

	return a, nil
}

// newController builds a widget over the shared store and loads the saved
// panel.
func (a *app) newController(ctx context.Context) (*widget.Controller, error) {
	ctrl, err := widget.New(a.client, a.store, a.renderer, widget.Options{
		Limit:  a.cfg.Widget.Limit,
		Layout: a.layout,
		Selectors: panel.Selectors{
			Results:     a.cfg.Widget.ResultElement,
			Saved:       a.cfg.Widget.SavedElement,
			Placeholder: a.cfg.Widget.PlaceholderElement,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := ctrl.Load(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// newFollower returns nil when follow is disabled.
func (a *app) newFollower() (*follow.Follower, error) {
	if !a.cfg.Follow.Enabled {
		return nil, nil
	}
	return follow.New(a.cfg.Follow.Schedule,
		follow.WithTimeout(a.cfg.Search.Timeout()),
		follow.WithSkip(func(err error) bool { return errors.Is(err, widget.ErrNoQuery) }),
	)
}

// followInterval is the gap between two ticks of the follow schedule, used
// by terminal sessions that refresh on their own timer. Zero when follow is
// disabled.
func (a *app) followInterval() time.Duration {
	if !a.cfg.Follow.Enabled {
		return 0
	}
	return scheduleInterval(a.cfg.Follow.Schedule, time.Now())
}

func scheduleInterval(spec string, now time.Time) time.Duration {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return 0
	}
	next := sched.Next(now)
	return sched.Next(next).Sub(next)
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}
}
