package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"tweetsaver/internal/store"
	"tweetsaver/internal/tweet"
	"tweetsaver/internal/version"
	"tweetsaver/internal/widget"
)

type searchBody struct {
	Query string `json:"query"`
}

type searchReply struct {
	State   string         `json:"state"`
	Query   string         `json:"query"`
	Results []tweet.Record `json:"results"`
	Alerts  []string       `json:"alerts,omitempty"`
}

type dropBody struct {
	Payload string `json:"payload"`
}

type dropReply struct {
	Outcome    string `json:"outcome"`
	SavedCount int    `json:"saved_count"`
}

type errorReply struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  version.Info(),
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, cookie, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	doc, err := sess.ctrl.Document()
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	lister := s.config.Saved
	if sess, ok := s.existing(r); ok {
		lister = savedFunc(sess.ctrl.Saved)
	} else if lister == nil {
		sess, cookie, ok := s.resolve(w, r)
		if !ok {
			return
		}
		if cookie != nil {
			http.SetCookie(w, cookie)
		}
		lister = savedFunc(sess.ctrl.Saved)
	}

	records, err := lister.LoadAll(r.Context())
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("failed to list saved tweets")
		writeError(w, http.StatusInternalServerError, "storage_error", "could not read saved tweets")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"query\": \"...\"}")
		return
	}

	sess, cookie, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	err := sess.ctrl.Search(r.Context(), body.Query)
	if errors.Is(err, widget.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "empty_query", widget.EmptyQueryMessage)
		return
	}

	snap := sess.ctrl.Page()
	cur := sess.ctrl.Current()
	reply := searchReply{
		State:   snap.State.String(),
		Query:   cur.Query,
		Results: cur.Records,
		Alerts:  snap.Alerts,
	}
	if reply.Results == nil {
		reply.Results = []tweet.Record{}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, reply)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	var body dropBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"payload\": \"<index>\"}")
		return
	}

	sess, cookie, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	outcome, err := sess.ctrl.Drop(r.Context(), body.Payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "could not save tweet")
		return
	}

	status := http.StatusCreated
	switch outcome {
	case widget.DropDuplicate:
		status = http.StatusConflict
	case widget.DropBadPayload:
		status = http.StatusBadRequest
	case widget.DropMissing:
		status = http.StatusNotFound
	}
	writeJSON(w, status, dropReply{
		Outcome:    outcome.String(),
		SavedCount: sess.ctrl.Page().SavedCount,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing tweet id")
		return
	}

	sess, cookie, ok := s.resolve(w, r)
	if !ok {
		return
	}
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	if err := sess.ctrl.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotRemoved) {
			writeError(w, http.StatusConflict, "not_removed", "saved tweet is still present")
			return
		}
		writeError(w, http.StatusInternalServerError, "storage_error", "could not delete saved tweet")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// savedFunc adapts a controller's Saved method to SavedLister.
type savedFunc func(ctx context.Context) ([]tweet.Record, error)

func (f savedFunc) LoadAll(ctx context.Context) ([]tweet.Record, error) {
	return f(ctx)
}

// resolve finds or creates the session and writes a 500 on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*session, *http.Cookie, bool) {
	sess, cookie, err := s.session(r)
	if err != nil {
		if errors.Is(err, ErrSessionLimit) {
			writeError(w, http.StatusServiceUnavailable, "session_limit", "too many open sessions, try again later")
			return nil, nil, false
		}
		log.Error().Err(err).Str("component", "server").Msg("failed to create session")
		writeError(w, http.StatusInternalServerError, "session_error", "could not start a session")
		return nil, nil, false
	}
	return sess, cookie, true
}

// rateLimited throttles next per client IP.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.limiter.Allow(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
			log.Warn().Str("component", "server").Str("method", r.Method).Str("path", r.URL.Path).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then
// the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("component", "server").Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorReply{Error: code, Message: message})
}
