// Package backup archives the saved set and its configuration into a
// .tar.gz and restores it.
package backup

import (
	"strings"
	"time"
)

// Components is a bitmask of what an archive holds.
type Components uint32

const (
	ComponentDatabase Components = 1 << iota
	ComponentConfig
	ComponentSSHKeys
)

func (c Components) Has(flag Components) bool {
	return c&flag != 0
}

func (c Components) String() string {
	var parts []string
	if c.Has(ComponentDatabase) {
		parts = append(parts, "database")
	}
	if c.Has(ComponentConfig) {
		parts = append(parts, "config")
	}
	if c.Has(ComponentSSHKeys) {
		parts = append(parts, "ssh_keys")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Manifest describes the contents and origin of an archive.
type Manifest struct {
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	AppVersion    string        `json:"app_version"`
	Components    Components    `json:"components"`
	OriginalPaths OriginalPaths `json:"original_paths"`
	Database      DatabaseInfo  `json:"database"`
}

// OriginalPaths records where files were located on the source system.
type OriginalPaths struct {
	Config      string `json:"config,omitempty"`
	Database    string `json:"database"`
	SSHHostKey  string `json:"ssh_host_key,omitempty"`
	SSHAuthKeys string `json:"ssh_authorized_keys,omitempty"`
}

// DatabaseInfo records basic database metadata.
type DatabaseInfo struct {
	Size       int64 `json:"size"`
	SavedCount int   `json:"saved_count"`
}

// Options configures Create.
type Options struct {
	DatabasePath string
	ConfigPath   string // empty leaves the config out
	// SSH key files are only archived when both are listed here.
	SSHHostKeyPath        string
	SSHAuthorizedKeysPath string
	OutputPath            string
}

// RestoreOptions configures Restore. Empty target paths fall back to the
// paths recorded in the manifest.
type RestoreOptions struct {
	ArchivePath    string
	DatabasePath   string
	ConfigPath     string
	SkipConfig     bool
	RestoreSSHKeys bool
	// Force allows overwriting existing files.
	Force  bool
	DryRun bool
}

// Result is returned by Create.
type Result struct {
	ArchivePath string        `json:"archive_path"`
	FileCount   int           `json:"file_count"`
	TotalSize   int64         `json:"total_size"`
	Components  Components    `json:"components"`
	SavedCount  int           `json:"saved_count"`
	Duration    time.Duration `json:"duration"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	Restored   []string   `json:"restored"`
	Skipped    []string   `json:"skipped,omitempty"`
	Components Components `json:"components"`
}

// Listing is returned by List.
type Listing struct {
	Manifest Manifest    `json:"manifest"`
	Files    []FileEntry `json:"files"`
}

// FileEntry describes a single file in the archive.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Mode string `json:"mode"`
}
