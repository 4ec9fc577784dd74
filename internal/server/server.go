// Package server is the web front end: it serves the widget page, relays
// browser actions received over a WebSocket to a per-session controller and
// pushes the re-rendered panels back.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tweetsaver/internal/follow"
	"tweetsaver/internal/ratelimit"
	"tweetsaver/internal/tweet"
	"tweetsaver/internal/widget"
)

//go:embed static
var staticFiles embed.FS

const (
	// SessionCookie names the cookie that ties a browser to its controller.
	SessionCookie = "tweetsaver_session"

	sessionIdleTTL  = 24 * time.Hour
	janitorInterval = 10 * time.Minute

	// DefaultMaxSessions bounds live sessions when Config.MaxSessions is 0.
	DefaultMaxSessions = 1000
)

// ErrSessionLimit is returned when every session slot is held by a browser
// with an open socket.
var ErrSessionLimit = errors.New("server: session limit reached")

// SavedLister reads the saved set without a session.
type SavedLister interface {
	LoadAll(ctx context.Context) ([]tweet.Record, error)
}

// ControllerFactory builds and loads a controller for a new session.
type ControllerFactory func(ctx context.Context) (*widget.Controller, error)

// Config configures a Server.
type Config struct {
	Port      int
	StaticDir string // empty serves the embedded assets

	// RateWindow and RateLimit throttle API calls and socket actions per
	// client IP. A zero RateLimit disables throttling.
	RateWindow time.Duration
	RateLimit  int

	NewController ControllerFactory
	Follower      *follow.Follower // nil disables follow requests

	// Saved serves GET /api/saved to callers without a session. When nil a
	// session is created for them.
	Saved SavedLister
	// MaxSessions caps live sessions; the longest idle session without a
	// socket is evicted to make room. Negative means unlimited.
	MaxSessions int
}

// Server holds the sessions and the HTTP listener.
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	limiter  *ratelimit.SlidingWindow
	static   http.Handler

	mu       sync.Mutex
	sessions map[string]*session

	httpServer *http.Server
}

// New creates a server. Call Handler for tests or Run to listen.
func New(cfg Config) (*Server, error) {
	if cfg.NewController == nil {
		return nil, errors.New("server: NewController is required")
	}

	s := &Server{
		config:   cfg,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
	}

	if cfg.MaxSessions == 0 {
		s.config.MaxSessions = DefaultMaxSessions
	}

	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		s.limiter = ratelimit.NewSlidingWindow(window, cfg.RateLimit, 5*time.Minute)
	}

	if cfg.StaticDir != "" {
		s.static = http.FileServer(http.Dir(cfg.StaticDir))
	} else {
		sub, err := fs.Sub(staticFiles, "static")
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded assets: %w", err)
		}
		s.static = http.FileServer(http.FS(sub))
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.Handle("GET /static/", http.StripPrefix("/static/", s.static))
	mux.Handle("GET /ws", s.rateLimited(http.HandlerFunc(s.handleWebSocket)))

	mux.Handle("GET /api/saved", s.rateLimited(http.HandlerFunc(s.handleListSaved)))
	mux.Handle("POST /api/saved", s.rateLimited(http.HandlerFunc(s.handleDrop)))
	mux.Handle("DELETE /api/saved/{id}", s.rateLimited(http.HandlerFunc(s.handleDelete)))
	mux.Handle("POST /api/search", s.rateLimited(http.HandlerFunc(s.handleSearch)))

	return mux
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Int("port", s.config.Port).Msg("web front end listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	log.Info().Str("component", "server").Msg("shutting down web front end")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops every session and stops the limiter.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.dropSession(sess)
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// SessionCount is the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// existing returns the session named by the caller's cookie, if any.
func (s *Server) existing(r *http.Request) (*session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	sess, ok := s.sessions[c.Value]
	s.mu.Unlock()
	if ok {
		sess.touch()
	}
	return sess, ok
}

// session resolves the caller's session from its cookie, creating one when
// the cookie is missing or stale. The returned cookie is non-nil only for a
// new session.
func (s *Server) session(r *http.Request) (*session, *http.Cookie, error) {
	if sess, ok := s.existing(r); ok {
		return sess, nil, nil
	}

	if err := s.makeRoom(); err != nil {
		return nil, nil, err
	}

	ctrl, err := s.config.NewController(r.Context())
	if err != nil {
		return nil, nil, err
	}

	sess := newSession(uuid.NewString(), ctrl)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	log.Debug().Str("component", "server").Str("session", sess.id).Msg("session created")

	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return sess, cookie, nil
}

// makeRoom evicts the longest idle socketless session when the cap is hit.
func (s *Server) makeRoom() error {
	if s.config.MaxSessions < 0 {
		return nil
	}

	s.mu.Lock()
	if len(s.sessions) < s.config.MaxSessions {
		s.mu.Unlock()
		return nil
	}
	var (
		victim *session
		oldest time.Time
	)
	for _, sess := range s.sessions {
		seen, sockets := sess.activity()
		if sockets > 0 {
			continue
		}
		if victim == nil || seen.Before(oldest) {
			victim, oldest = sess, seen
		}
	}
	if victim == nil {
		s.mu.Unlock()
		return ErrSessionLimit
	}
	delete(s.sessions, victim.id)
	s.mu.Unlock()

	s.dropSession(victim)
	log.Debug().Str("component", "server").Str("session", victim.id).Msg("evicted session to make room")
	return nil
}

func (s *Server) dropSession(sess *session) {
	if s.config.Follower != nil {
		s.config.Follower.Remove(sess.id)
	}
	sess.closeClients()
}

// janitor evicts sessions with no sockets that have been idle too long.
func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-sessionIdleTTL))
		}
	}
}

func (s *Server) evictIdle(cutoff time.Time) int {
	var stale []*session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		s.dropSession(sess)
	}
	if len(stale) > 0 {
		log.Debug().Str("component", "server").Int("sessions", len(stale)).Msg("evicted idle sessions")
	}
	return len(stale)
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
