package search

import (
	"time"
)

// DefaultEndpoint is the public search endpoint the widget was built against.
const DefaultEndpoint = "http://search.twitter.com/search.json"

// ClientConfig configures the search client
type ClientConfig struct {
	Endpoint          string        `json:"endpoint"`
	Callback          string        `json:"callback"`
	Limit             int           `json:"limit"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        int           `json:"max_retries"`
	RetryDelay        time.Duration `json:"retry_delay"`
	RequestsPerMinute int           `json:"requests_per_minute"`
	UserAgent         string        `json:"user_agent"`
}

// DefaultClientConfig returns the default client configuration. Retries are
// off so every submission issues exactly one request.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:          DefaultEndpoint,
		Callback:          "tweetsaver",
		Limit:             10,
		Timeout:           30 * time.Second,
		MaxRetries:        0,
		RetryDelay:        1 * time.Second,
		RequestsPerMinute: 60,
		UserAgent:         "tweetsaver/1.0",
	}
}

// withDefaults fills zero values from DefaultClientConfig
func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.Limit <= 0 {
		c.Limit = def.Limit
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	return c
}
