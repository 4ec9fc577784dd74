// Package datadir resolves where tweetsaver keeps its config, database and
// SSH keys.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the data directory name under $HOME.
	DefaultDirName = ".tweetsaver"

	// EnvVar overrides the data directory.
	EnvVar = "TWEETSAVER_DATA_DIR"

	configSubdir   = "config"
	sshSubdir      = "ssh"
	databaseSubdir = "data"
	templateSubdir = "templates"

	// DatabaseFile is the saved-set database file name.
	DatabaseFile = "saved.db"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// DataDir is the resolved data root and its layout.
type DataDir struct {
	root string
}

// New returns a DataDir rooted at the resolved data directory without
// creating anything.
//
// Resolution priority:
//  1. TWEETSAVER_DATA_DIR environment variable
//  2. configValue (the data_dir config field)
//  3. ~/.tweetsaver/
func New(configValue string) (*DataDir, error) {
	root, err := resolveRoot(configValue)
	if err != nil {
		return nil, err
	}
	return &DataDir{root: root}, nil
}

// Root returns the base data directory path.
func (d *DataDir) Root() string { return d.root }

// ConfigDir returns {root}/config/.
func (d *DataDir) ConfigDir() string { return filepath.Join(d.root, configSubdir) }

// SSHDir returns {root}/ssh/.
func (d *DataDir) SSHDir() string { return filepath.Join(d.root, sshSubdir) }

// DatabaseDir returns {root}/data/.
func (d *DataDir) DatabaseDir() string { return filepath.Join(d.root, databaseSubdir) }

// TemplateDir returns {root}/templates/.
func (d *DataDir) TemplateDir() string { return filepath.Join(d.root, templateSubdir) }

// DatabasePath is the default saved-set database location.
func (d *DataDir) DatabasePath() string { return filepath.Join(d.DatabaseDir(), DatabaseFile) }

// ConfigPath is the default config file location.
func (d *DataDir) ConfigPath() string { return filepath.Join(d.ConfigDir(), ConfigFile) }

// SSHFilePath returns the full path to a file inside the ssh subdirectory.
func (d *DataDir) SSHFilePath(filename string) string {
	return filepath.Join(d.SSHDir(), filename)
}

// EnsureDirs creates the root and all subdirectories with 0700 permissions.
func (d *DataDir) EnsureDirs() error {
	dirs := []string{d.root, d.ConfigDir(), d.SSHDir(), d.DatabaseDir(), d.TemplateDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Resolve returns the data directory path, creating it if needed.
func Resolve(configValue string) (string, error) {
	root, err := resolveRoot(configValue)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", root, err)
	}
	return root, nil
}

func resolveRoot(configValue string) (string, error) {
	dir := os.Getenv(EnvVar)
	if dir == "" {
		dir = configValue
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	return dir, nil
}
