package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockSearchResponse = `{
	"query": "gophers",
	"results": [
		{"id_str": "1", "from_user": "gopher", "text": "hello", "created_at": "Mon, 02 Jan 2006 15:04:05 +0000"}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*ClientConfig)) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := ClientConfig{Endpoint: server.URL + "/search.json", Limit: 10}
	if mutate != nil {
		mutate(&config)
	}
	client := NewClient(config, CacheConfig{})
	t.Cleanup(client.Close)
	return client, server
}

func TestClient_SearchBuildsRequest(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "go lang & more", r.URL.Query().Get("q"))
		assert.Equal(t, "7", r.URL.Query().Get("rpp"))
		assert.Equal(t, "tweetsaver", r.URL.Query().Get("callback"))

		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("tweetsaver(" + mockSearchResponse + ");"))
	}, func(c *ClientConfig) {
		c.Limit = 7
		c.Callback = "tweetsaver"
	})

	body, err := client.Search(context.Background(), "go lang & more")
	require.NoError(t, err)
	assert.JSONEq(t, mockSearchResponse, string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 7, client.Limit())
}

func TestClient_SearchEmptyQuery(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, nil)

	_, err := client.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestClient_SearchStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrAPIUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrAPIRateLimit},
		{name: "enhance your calm", status: 420, wantErr: ErrAPIRateLimit},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrAPIServerError},
		{name: "teapot", status: http.StatusTeapot, wantErr: ErrAPIStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, nil)

			_, err := client.Search(context.Background(), "anything")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var searchErr *SearchError
			require.True(t, errors.As(err, &searchErr))
			assert.Equal(t, "anything", searchErr.Query)
		})
	}
}

func TestClient_ErrorBodyPassesThrough(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"no results for X","query":"X"}`))
	}, nil)

	body, err := client.Search(context.Background(), "X")
	require.NoError(t, err)
	assert.Contains(t, string(body), "no results for X")
}

func TestClient_RetriesRetryableErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(mockSearchResponse))
	}, func(c *ClientConfig) {
		c.MaxRetries = 2
		c.RetryDelay = time.Millisecond
	})

	body, err := client.Search(context.Background(), "gophers")
	require.NoError(t, err)
	assert.Contains(t, string(body), "gopher")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	_, err := client.Search(context.Background(), "gophers")
	assert.ErrorIs(t, err, ErrAPIServerError)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_CacheHit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(mockSearchResponse))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL}, CacheConfig{Enabled: true, TTLMinutes: 5})
	defer client.Close()

	for i := 0; i < 3; i++ {
		_, err := client.Search(context.Background(), "gophers")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(mockSearchResponse))
	}, func(c *ClientConfig) {
		c.Timeout = 20 * time.Millisecond
	})

	_, err := client.Search(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrNetworkTimeout)
}

func TestUnwrapJSONP(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		callback string
		want     string
	}{
		{name: "plain json", body: ` {"a":1} `, callback: "cb", want: `{"a":1}`},
		{name: "wrapped", body: `cb({"a":1})`, callback: "cb", want: `{"a":1}`},
		{name: "wrapped with semicolon", body: "cb({\"a\":1});\n", callback: "cb", want: `{"a":1}`},
		{name: "namespaced callback", body: `jQuery.cb({"a":1})`, callback: "cb", want: `{"a":1}`},
		{name: "any callback when unset", body: `whatever({"a":1})`, callback: "", want: `{"a":1}`},
		{name: "other callback untouched", body: `other({"a":1})`, callback: "cb", want: `other({"a":1})`},
		{name: "garbage untouched", body: `<html>`, callback: "cb", want: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(UnwrapJSONP([]byte(tt.body), tt.callback)))
		})
	}
}
