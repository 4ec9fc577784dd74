package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client queries the tweet search endpoint and returns the raw payload.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ResponseCache
}

// NewClient creates a new search client
func NewClient(config ClientConfig, cacheConfig CacheConfig) *Client {
	config = config.withDefaults()

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: limiter,
		cache:   NewResponseCache(cacheConfig),
	}
}

// Limit returns the configured result-count limit
func (c *Client) Limit() int {
	return c.config.Limit
}

// Close releases background resources
func (c *Client) Close() {
	c.cache.Close()
}

// Search fetches the raw payload for query. The JSONP wrapper, if any, is
// removed so the body can be handed straight to the result processor.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	if cached, found := c.cache.Get(query, c.config.Limit); found {
		log.Debug().Str("component", "search").Str("query", query).Msg("cache hit")
		return cached, nil
	}

	body, err := c.searchWithRetries(ctx, query)
	if err != nil {
		var searchErr *SearchError
		if !errors.As(err, &searchErr) {
			searchErr = &SearchError{Query: query, Code: "failed", Err: err}
		}
		return nil, searchErr
	}

	c.cache.Set(query, c.config.Limit, body)
	return body, nil
}

// searchWithRetries performs the request with retry logic
func (c *Client) searchWithRetries(ctx context.Context, query string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		body, err := c.performSearch(ctx, query)
		if err == nil {
			return body, nil
		}

		lastErr = err
		log.Warn().Str("component", "search").Str("query", query).Int("attempt", attempt+1).Err(err).Msg("search request failed")

		if !IsRetryableError(err) {
			break
		}
	}

	if c.config.MaxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// performSearch performs a single request
func (c *Client) performSearch(ctx context.Context, query string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	apiURL, err := c.buildAPIURL(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/javascript")
	req.Header.Set("User-Agent", c.config.UserAgent)

	log.Debug().Str("component", "search").Str("url", apiURL).Msg("issuing search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	body = UnwrapJSONP(body, c.config.Callback)
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}

// buildAPIURL constructs the endpoint URL: the term, the result-count limit
// and the callback name used for cross-origin responses.
func (c *Client) buildAPIURL(query string) (string, error) {
	base, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", err
	}

	queryParams := base.Query()
	queryParams.Set("q", query)
	queryParams.Set("rpp", strconv.Itoa(c.config.Limit))
	if c.config.Callback != "" {
		queryParams.Set("callback", c.config.Callback)
	}
	base.RawQuery = queryParams.Encode()

	return base.String(), nil
}

// checkHTTPStatus maps the response status to sentinel errors. A 404 or 403
// with a JSON body still carries an "error" field the processor understands,
// so those bodies are passed through.
func checkHTTPStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusForbidden:
		return nil
	case http.StatusUnauthorized:
		return ErrAPIUnauthorized
	case http.StatusTooManyRequests, 420:
		return ErrAPIRateLimit
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrAPIServerError
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrAPIStatus, resp.StatusCode, string(body))
	}
}

// mapNetworkError maps Go HTTP errors to our error types
func mapNetworkError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrNetworkTimeout
	}

	return fmt.Errorf("%w: %v", ErrNetworkError, err)
}

// UnwrapJSONP strips a "callback(...)" or "callback(...);" wrapper. Bodies
// that are already plain JSON are returned trimmed.
func UnwrapJSONP(body []byte, callback string) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}

	open := bytes.IndexByte(trimmed, '(')
	if open <= 0 {
		return trimmed
	}
	name := strings.TrimSpace(string(trimmed[:open]))
	if callback != "" && name != callback && !strings.HasSuffix(name, "."+callback) {
		return trimmed
	}

	rest := bytes.TrimSuffix(trimmed[open+1:], []byte(";"))
	rest = bytes.TrimSpace(rest)
	if !bytes.HasSuffix(rest, []byte(")")) {
		return trimmed
	}
	return bytes.TrimSpace(rest[:len(rest)-1])
}
