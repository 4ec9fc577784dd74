package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tweetsaver configuration
type Config struct {
	Timezone    string         `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	DataDir     string         `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	SecretsFile string         `json:"secrets_file,omitempty" yaml:"secrets_file,omitempty"`
	Widget      WidgetConfig   `json:"widget" yaml:"widget"`
	Search      SearchConfig   `json:"search" yaml:"search"`
	Database    DatabaseConfig `json:"database" yaml:"database"`
	Server      ServerConfig   `json:"server" yaml:"server"`
	SSH         SSHConfig      `json:"ssh" yaml:"ssh"`
	Follow      FollowConfig   `json:"follow" yaml:"follow"`
	Log         LogConfig      `json:"log" yaml:"log"`
}

// WidgetConfig holds the widget options: the record template, the page
// containers and the alert/no-result markup.
type WidgetConfig struct {
	Template           string `json:"template,omitempty" yaml:"template,omitempty"` // empty = built-in template
	Layout             string `json:"layout,omitempty" yaml:"layout,omitempty"`     // page layout file, empty = built-in
	ResultElement      string `json:"result_element" yaml:"result_element"`
	SavedElement       string `json:"saved_element" yaml:"saved_element"`
	PlaceholderElement string `json:"placeholder_element" yaml:"placeholder_element"`
	Limit              int    `json:"limit" yaml:"limit"`
	NoResult           string `json:"noresult,omitempty" yaml:"noresult,omitempty"`
	Alert              string `json:"alert,omitempty" yaml:"alert,omitempty"`
}

// SearchConfig configures the outbound search client
type SearchConfig struct {
	Endpoint          string `json:"endpoint" yaml:"endpoint"`
	Callback          string `json:"callback,omitempty" yaml:"callback,omitempty"`
	TimeoutSeconds    int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int    `json:"max_retries" yaml:"max_retries"`
	RetryDelayMs      int    `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	RequestsPerMinute int    `json:"requests_per_minute" yaml:"requests_per_minute"`
	CacheTTLMinutes   int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"` // 0 disables the cache
	UserAgent         string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ServerConfig configures the web front end
type ServerConfig struct {
	Port      int             `json:"port" yaml:"port"`
	StaticDir string          `json:"static_dir,omitempty" yaml:"static_dir,omitempty"` // empty = embedded assets
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// MaxSessions caps browser sessions; 0 uses the server default, -1 lifts the cap.
	MaxSessions int `json:"max_sessions,omitempty" yaml:"max_sessions,omitempty"`
}

// RateLimitConfig throttles inbound API and WebSocket actions per client IP
type RateLimitConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	WindowSeconds int  `json:"window_seconds" yaml:"window_seconds"`
	MaxRequests   int  `json:"max_requests" yaml:"max_requests"`
}

// Window returns the rate limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// SSHConfig holds configuration for the SSH front end
type SSHConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	ListenAddr         string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	HostKeyPath        string `json:"host_key_path,omitempty" yaml:"host_key_path,omitempty"`
	AuthorizedKeysPath string `json:"authorized_keys_path,omitempty" yaml:"authorized_keys_path,omitempty"`
}

// FollowConfig controls periodic re-running of the current query
type FollowConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule" yaml:"schedule"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Timeout returns the search timeout as a duration.
func (s SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RetryDelay returns the delay between retries as a duration.
func (s SearchConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Widget: WidgetConfig{
			ResultElement:      "#search-results",
			SavedElement:       "#saved-tweets",
			PlaceholderElement: "#saved-results .placeholder",
			Limit:              10,
		},
		Search: SearchConfig{
			Endpoint:          "http://search.twitter.com/search.json",
			Callback:          "tweetsaver",
			TimeoutSeconds:    30,
			MaxRetries:        0,
			RetryDelayMs:      1000,
			RequestsPerMinute: 60,
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Server: ServerConfig{
			Port: 8080,
			RateLimit: RateLimitConfig{
				Enabled:       true,
				WindowSeconds: 60,
				MaxRequests:   120,
			},
		},
		SSH: SSHConfig{
			Enabled:    false,
			ListenAddr: ":2222",
		},
		Follow: FollowConfig{
			Enabled:  false,
			Schedule: "@every 1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a file. A missing file is created with the
// defaults. The format follows the extension: .yaml/.yml or JSON otherwise.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Created default configuration at %s\n", path)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandTilde()

	// Secrets go into the environment before ${VAR} expansion.
	if err := cfg.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// expandEnvVars expands ${VAR} references in string settings
func (c *Config) expandEnvVars() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)
	c.Database.Path = os.ExpandEnv(c.Database.Path)

	c.Widget.Template = os.ExpandEnv(c.Widget.Template)
	c.Widget.Layout = os.ExpandEnv(c.Widget.Layout)

	c.Search.Endpoint = os.ExpandEnv(c.Search.Endpoint)
	c.Search.UserAgent = os.ExpandEnv(c.Search.UserAgent)

	c.Server.StaticDir = os.ExpandEnv(c.Server.StaticDir)
	c.SSH.HostKeyPath = os.ExpandEnv(c.SSH.HostKeyPath)
	c.SSH.AuthorizedKeysPath = os.ExpandEnv(c.SSH.AuthorizedKeysPath)
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Widget.Limit <= 0 {
		errs = append(errs, fmt.Errorf("widget.limit must be greater than 0"))
	}
	if c.Search.Endpoint == "" {
		errs = append(errs, fmt.Errorf("search.endpoint is required"))
	}
	if c.Search.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("search.timeout_seconds must not be negative"))
	}
	if c.Search.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("search.max_retries must not be negative"))
	}
	if c.Search.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("search.requests_per_minute must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.WindowSeconds <= 0 || c.Server.RateLimit.MaxRequests <= 0) {
		errs = append(errs, fmt.Errorf("invalid server.rate_limit configuration"))
	}
	if c.Follow.Enabled {
		if _, err := cron.ParseStandard(c.Follow.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid follow.schedule %q: %w", c.Follow.Schedule, err))
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err))
		}
	}

	return errors.Join(errs...)
}

// GetLocation returns the configured timezone, or time.Local.
func (c *Config) GetLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued fields.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.DataDir = expand(c.DataDir)
	c.SecretsFile = expand(c.SecretsFile)
	c.Database.Path = expand(c.Database.Path)
	c.Widget.Template = expand(c.Widget.Template)
	c.Widget.Layout = expand(c.Widget.Layout)
	c.Server.StaticDir = expand(c.Server.StaticDir)
	c.SSH.HostKeyPath = expand(c.SSH.HostKeyPath)
	c.SSH.AuthorizedKeysPath = expand(c.SSH.AuthorizedKeysPath)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Existing variables win. A missing file is a no-op.
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}
	if _, err := os.Stat(c.SecretsFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(c.SecretsFile); err != nil {
		return fmt.Errorf("cannot load secrets file %s: %w", c.SecretsFile, err)
	}
	return nil
}
