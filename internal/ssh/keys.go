package ssh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	charmssh "github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"

	"tweetsaver/internal/datadir"
)

const (
	hostKeyFile        = "ssh_host_key"
	authorizedKeysFile = "authorized_keys"
)

// ErrKeyNotFound is returned when removing a fingerprint that is not listed.
var ErrKeyNotFound = errors.New("authorized key not found")

// DataDirConfig holds the optional config value for the data directory.
// Set this before calling SSH key functions so the config-level
// data_dir override is respected.
var DataDirConfig string

// KeyEntry represents an authorized public key with metadata
type KeyEntry struct {
	PublicKey   charmssh.PublicKey
	Comment     string
	Fingerprint string
}

func sshPath(name string) (string, error) {
	d, err := datadir.New(DataDirConfig)
	if err != nil {
		return "", err
	}
	return d.SSHFilePath(name), nil
}

// DefaultHostKeyPath is where the generated host key lives.
func DefaultHostKeyPath() (string, error) {
	return sshPath(hostKeyFile)
}

// DefaultAuthorizedKeysPath is where authorized_keys lives.
func DefaultAuthorizedKeysPath() (string, error) {
	return sshPath(authorizedKeysFile)
}

func resolveKeysPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultAuthorizedKeysPath()
}

// parseAuthorizedKeys reads entries, skipping blanks, comments and lines
// that do not parse.
func parseAuthorizedKeys(r io.Reader) ([]KeyEntry, error) {
	var entries []KeyEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pubKey, comment, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		entries = append(entries, KeyEntry{
			PublicKey:   pubKey,
			Comment:     comment,
			Fingerprint: gossh.FingerprintSHA256(pubKey),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading authorized keys: %w", err)
	}
	return entries, nil
}

// ListAuthorizedKeys returns all authorized keys with fingerprints
func ListAuthorizedKeys(path string) ([]KeyEntry, error) {
	path, err := resolveKeysPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open authorized keys: %w", err)
	}
	defer f.Close()
	return parseAuthorizedKeys(f)
}

// LoadAuthorizedKeys loads SSH public keys from an authorized_keys file
func LoadAuthorizedKeys(path string) ([]charmssh.PublicKey, error) {
	entries, err := ListAuthorizedKeys(path)
	if err != nil {
		return nil, err
	}
	keys := make([]charmssh.PublicKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.PublicKey)
	}
	return keys, nil
}

// AddAuthorizedKey validates keyData and appends it to the authorized_keys
// file. It returns the key's fingerprint.
func AddAuthorizedKey(path string, keyData string) (string, error) {
	path, err := resolveKeysPath(path)
	if err != nil {
		return "", err
	}

	keyData = strings.TrimSpace(keyData)
	pubKey, _, _, _, err := gossh.ParseAuthorizedKey([]byte(keyData))
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to open authorized keys: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(keyData + "\n"); err != nil {
		return "", fmt.Errorf("failed to write key: %w", err)
	}
	return gossh.FingerprintSHA256(pubKey), nil
}

// RemoveAuthorizedKey removes a key by fingerprint, keeping every other
// line (comments included) as it was.
func RemoveAuthorizedKey(path string, fingerprint string) error {
	path, err := resolveKeysPath(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open authorized keys: %w", err)
	}

	var kept []string
	found := false
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if pubKey, _, _, _, err := gossh.ParseAuthorizedKey([]byte(trimmed)); err == nil &&
				gossh.FingerprintSHA256(pubKey) == fingerprint {
				found = true
				continue
			}
		}
		kept = append(kept, line)
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, fingerprint)
	}
	return os.WriteFile(path, []byte(strings.Join(kept, "\n")+"\n"), 0600)
}

// InitKeys creates an empty authorized_keys file when none exists and
// reports whether it did. The host key is generated by the server on first
// start.
func InitKeys(authorizedKeysPath string) (bool, error) {
	path, err := resolveKeysPath(authorizedKeysPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte("# tweetsaver authorized SSH keys\n"), 0600); err != nil {
		return false, fmt.Errorf("failed to create authorized_keys: %w", err)
	}
	return true, nil
}
