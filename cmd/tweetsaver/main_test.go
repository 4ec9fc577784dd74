package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsaver/internal/version"
)

const payload = `{"query":"golang","results":[
	{"id_str":"123","from_user":"alice","text":"hello #golang","created_at":"Sun, 31 Mar 2013 11:55:00 +0000"},
	{"id_str":"456","from_user":"bob","text":"gophers","created_at":"Sun, 31 Mar 2013 10:00:00 +0000"}
]}`

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		searchSave = nil
		searchJSON = false
		searchHTML = false
		savedJSON = false
		versionJSON = false
		backupOutput = ""
		backupJSON = false
		restoreForce = false
		restoreDryRun = false
		restoreSkipCfg = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TWEETSAVER_DATA_DIR", dir)
	t.Setenv("TWEETSAVER_ENV_FILE", filepath.Join(dir, "missing.env"))

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "golang" {
			w.Write([]byte(payload))
			return
		}
		w.Write([]byte(`{"query":"` + r.URL.Query().Get("q") + `","results":[]}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := map[string]interface{}{
		"search": map[string]interface{}{
			"endpoint":            upstream.URL,
			"requests_per_minute": 0,
		},
		"log": map[string]interface{}{"level": "off"},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestSearchSaveListRemove(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := execute(t, "--config", cfg, "search", "golang", "--save", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "@bob")
	assert.Contains(t, out, "saved 123")

	out, err = execute(t, "--config", cfg, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "123")
	assert.NotContains(t, out, "456")

	out, err = execute(t, "--config", cfg, "saved", "list", "--json")
	require.NoError(t, err)
	var saved []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "123", saved[0]["id_str"])

	out, err = execute(t, "--config", cfg, "saved", "rm", "123")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 123")

	_, err = execute(t, "--config", cfg, "saved", "rm", "123")
	assert.Error(t, err)

	out, err = execute(t, "--config", cfg, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved tweets.")
}

func TestSearchNoResults(t *testing.T) {
	cfg := setupWorkspace(t)

	out, err := execute(t, "--config", cfg, "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, `No results found for "nothing"`)
}

func TestSearchDuplicateSave(t *testing.T) {
	cfg := setupWorkspace(t)

	_, err := execute(t, "--config", cfg, "search", "golang", "--save", "1")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "search", "golang", "--save", "1,7")
	require.NoError(t, err)
	assert.Contains(t, out, "not saved [1]: duplicate")
	assert.Contains(t, out, "not saved [7]: missing")
}

func TestBackupRoundTrip(t *testing.T) {
	cfg := setupWorkspace(t)
	archive := filepath.Join(t.TempDir(), "saved.tar.gz")

	_, err := execute(t, "--config", cfg, "search", "golang", "--save", "0,1")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "backup", "create", "-o", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "saved tweets: 2")
	assert.Contains(t, out, "database, config")

	out, err = execute(t, "--config", cfg, "backup", "list", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "database/saved.db")
	assert.Contains(t, out, "config/config.json")

	_, err = execute(t, "--config", cfg, "saved", "rm", "123")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "backup", "restore", archive, "--skip-config")
	assert.Error(t, err)

	out, err = execute(t, "--config", cfg, "backup", "restore", archive, "--skip-config", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "restored")

	out, err = execute(t, "--config", cfg, "saved", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "123")
	assert.Contains(t, out, "456")
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Name, info.Name)
	assert.Equal(t, version.Info(), info.Version)
}

func TestScheduleInterval(t *testing.T) {
	now := time.Date(2024, time.January, 1, 10, 0, 30, 0, time.UTC)
	tests := []struct {
		spec string
		want time.Duration
	}{
		{"@every 1m", time.Minute},
		{"@every 30s", 30 * time.Second},
		{"*/5 * * * *", 5 * time.Minute},
		{"@hourly", time.Hour},
		{"nonsense", 0},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduleInterval(tt.spec, now))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "a b c", oneLine("a\n  b\tc"))
}
