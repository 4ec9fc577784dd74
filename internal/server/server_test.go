package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsaver/internal/follow"
	"tweetsaver/internal/render"
	"tweetsaver/internal/store"
	"tweetsaver/internal/tweet"
	"tweetsaver/internal/widget"
	"tweetsaver/pkg/protocol"
)

const payload = `{"query":"golang","results":[
	{"id_str":"123","from_user":"alice","text":"hello #golang","created_at":"Sun, 31 Mar 2013 11:55:00 +0000"},
	{"id_str":"456","from_user":"bob","text":"gophers","created_at":"Sun, 31 Mar 2013 10:00:00 +0000"}
]}`

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string) ([]byte, error) {
	if query == "golang" {
		return []byte(payload), nil
	}
	return []byte(fmt.Sprintf(`{"query":%q,"results":[]}`, query)), nil
}

type harness struct {
	srv   *Server
	ts    *httptest.Server
	store *store.Store
	http  *http.Client
}

// slowSearcher answers one query late and signals once it has.
type slowSearcher struct {
	query string
	delay time.Duration
	done  chan struct{}
}

func (s *slowSearcher) Search(ctx context.Context, query string) ([]byte, error) {
	if query == s.query {
		defer close(s.done)
		time.Sleep(s.delay)
	}
	return stubSearcher{}.Search(ctx, query)
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	return newHarnessWith(t, stubSearcher{}, mutate)
}

func newHarnessWith(t *testing.T, searcher widget.Searcher, mutate func(*Config)) *harness {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "saved.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r, err := render.New(render.Options{Now: func() time.Time {
		return time.Date(2013, time.March, 31, 12, 0, 0, 0, time.UTC)
	}})
	require.NoError(t, err)

	cfg := Config{
		NewController: func(ctx context.Context) (*widget.Controller, error) {
			c, err := widget.New(searcher, st, r, widget.Options{})
			if err != nil {
				return nil, err
			}
			return c, c.Load(ctx)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{srv: srv, ts: ts, store: st, http: &http.Client{Jar: jar}}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rd)
	require.NoError(t, err)
	resp, err := h.http.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNewRequiresFactory(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestPageSetsSession(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), `id="search-results"`)
	assert.Contains(t, string(html), `id="saved-tweets"`)

	u, _ := url.Parse(h.ts.URL)
	require.Len(t, h.http.Jar.Cookies(u), 1)

	// Same browser, same session.
	h.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, 1, h.srv.SessionCount())
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodGet, "/static/widget.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/static/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPISearch(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(t, http.MethodPost, "/api/search", searchBody{Query: "golang"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[searchReply](t, resp)
	assert.Equal(t, "displaying", reply.State)
	require.Len(t, reply.Results, 2)
	assert.Equal(t, "123", reply.Results[0].ID)

	resp = h.do(t, http.MethodPost, "/api/search", searchBody{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/search", searchBody{Query: "nothing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply = decode[searchReply](t, resp)
	assert.Empty(t, reply.Results)
	require.Len(t, reply.Alerts, 1)
	assert.Contains(t, reply.Alerts[0], "No results found")
}

func TestAPISaveListDelete(t *testing.T) {
	h := newHarness(t, nil)

	h.do(t, http.MethodPost, "/api/search", searchBody{Query: "golang"})

	resp := h.do(t, http.MethodPost, "/api/saved", dropBody{Payload: "0"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	drop := decode[dropReply](t, resp)
	assert.Equal(t, "saved", drop.Outcome)
	assert.Equal(t, 1, drop.SavedCount)

	resp = h.do(t, http.MethodPost, "/api/saved", dropBody{Payload: "0"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/saved", dropBody{Payload: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/saved", dropBody{Payload: "9"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/saved", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[[]tweet.Record](t, resp)
	require.Len(t, saved, 1)
	assert.Equal(t, "123", saved[0].ID)

	resp = h.do(t, http.MethodDelete, "/api/saved/123", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.RateLimit = 2
		c.RateWindow = time.Minute
	})

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/saved", nil).StatusCode)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/saved", nil).StatusCode)

	resp := h.do(t, http.MethodGet, "/api/saved", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health checks are not throttled.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", nil).StatusCode)
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Jar: h.http.Jar, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(h.ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(interface{}) bool) interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		if match(msg) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketSearchDropDelete(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t)

	first := readUntil(t, conn, func(m interface{}) bool { _, ok := m.(*protocol.PanelUpdate); return ok })
	assert.Equal(t, 0, first.(*protocol.PanelUpdate).SavedCount)
	assert.True(t, first.(*protocol.PanelUpdate).Placeholder)

	send(t, conn, protocol.SearchRequest{BaseMessage: protocol.NewBase(protocol.TypeSearch), Query: "golang"})
	got := readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && u.State == "displaying"
	}).(*protocol.PanelUpdate)
	assert.Contains(t, got.ResultsHTML, `data-tweet="0"`)

	send(t, conn, protocol.DropRequest{BaseMessage: protocol.NewBase(protocol.TypeDrop), Payload: "0"})
	got = readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && u.SavedCount == 1
	}).(*protocol.PanelUpdate)
	assert.Contains(t, got.SavedHTML, `data-id="123"`)
	assert.False(t, got.Placeholder)

	send(t, conn, protocol.DeleteRequest{BaseMessage: protocol.NewBase(protocol.TypeDelete), TweetID: "123"})
	got = readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && u.SavedCount == 0
	}).(*protocol.PanelUpdate)
	assert.True(t, got.Placeholder)
}

func TestWebSocketEmptySearchShowsAlert(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t)

	send(t, conn, protocol.SearchRequest{BaseMessage: protocol.NewBase(protocol.TypeSearch), Query: ""})
	got := readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && strings.Contains(u.ResultsHTML, "alert")
	}).(*protocol.PanelUpdate)
	assert.Contains(t, got.ResultsHTML, "Please enter a search term!")
}

func TestWebSocketFollowDisabled(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t)

	send(t, conn, protocol.FollowRequest{BaseMessage: protocol.NewBase(protocol.TypeFollow), Enabled: true})
	msg := readUntil(t, conn, func(m interface{}) bool { _, ok := m.(*protocol.ErrorResponse); return ok })
	assert.Contains(t, msg.(*protocol.ErrorResponse).Message, "follow")
}

func TestWebSocketFollow(t *testing.T) {
	f, err := follow.New("@every 1h")
	require.NoError(t, err)

	h := newHarness(t, func(c *Config) { c.Follower = f })
	conn := h.dial(t)

	send(t, conn, protocol.FollowRequest{BaseMessage: protocol.NewBase(protocol.TypeFollow), Enabled: true})
	readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && u.Following
	})
	assert.Equal(t, 1, f.Len())

	send(t, conn, protocol.FollowRequest{BaseMessage: protocol.NewBase(protocol.TypeFollow), Enabled: false})
	readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && !u.Following
	})
	assert.Equal(t, 0, f.Len())
}

func (h *harness) onlySession(t *testing.T) *session {
	t.Helper()
	h.srv.mu.Lock()
	defer h.srv.mu.Unlock()
	require.Len(t, h.srv.sessions, 1)
	for _, sess := range h.srv.sessions {
		return sess
	}
	return nil
}

func TestWebSocketSearchesApplyInOrder(t *testing.T) {
	slow := &slowSearcher{query: "nothing", delay: 200 * time.Millisecond, done: make(chan struct{})}
	h := newHarnessWith(t, slow, nil)
	conn := h.dial(t)
	readUntil(t, conn, func(m interface{}) bool { _, ok := m.(*protocol.PanelUpdate); return ok })

	send(t, conn, protocol.SearchRequest{BaseMessage: protocol.NewBase(protocol.TypeSearch), Query: "nothing"})
	send(t, conn, protocol.SearchRequest{BaseMessage: protocol.NewBase(protocol.TypeSearch), Query: "golang"})

	got := readUntil(t, conn, func(m interface{}) bool {
		u, ok := m.(*protocol.PanelUpdate)
		return ok && u.State == "displaying"
	}).(*protocol.PanelUpdate)
	assert.Equal(t, "golang", got.Query)

	select {
	case <-slow.done:
	case <-time.After(5 * time.Second):
		t.Fatal("first search never returned")
	}

	// The late answer to the first search must not replace the second.
	sess := h.onlySession(t)
	assert.Never(t, func() bool { return sess.ctrl.Page().Query != "golang" }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Contains(t, sess.ctrl.Page().ResultsHTML, `data-tweet="0"`)
}

func TestListSavedWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.config.Saved = h.store
	require.NoError(t, h.store.Save(context.Background(), tweet.Record{ID: "123", FromUser: "alice", Text: "hi"}))

	resp, err := http.Get(h.ts.URL + "/api/saved")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
	saved := decode[[]tweet.Record](t, resp)
	require.Len(t, saved, 1)
	assert.Equal(t, "123", saved[0].ID)
	assert.Equal(t, 0, h.srv.SessionCount())
}

func TestSessionCap(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxSessions = 2 })

	for i := 0; i < 3; i++ {
		resp, err := http.Get(h.ts.URL + "/")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 2, h.srv.SessionCount())
}

func TestSessionCapKeepsConnectedSessions(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxSessions = 1 })
	conn := h.dial(t)
	readUntil(t, conn, func(m interface{}) bool { _, ok := m.(*protocol.PanelUpdate); return ok })

	resp, err := http.Get(h.ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, h.srv.SessionCount())
}

func TestEvictIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/", nil)
	require.Equal(t, 1, h.srv.SessionCount())

	assert.Equal(t, 0, h.srv.evictIdle(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, h.srv.evictIdle(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, h.srv.SessionCount())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "forwarded", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, remote: "10.0.0.1:1", want: "1.2.3.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "5.6.7.8"}, remote: "10.0.0.1:1", want: "5.6.7.8"},
		{name: "bad forwarded", headers: map[string]string{"X-Forwarded-For": "garbage"}, remote: "10.0.0.2:1", want: "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
