package backup

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Restore extracts an archive over the saved-set database and, unless
// skipped, its config and SSH keys. Existing files are only replaced with
// Force. DryRun reports what would be written without touching disk.
func Restore(opts RestoreOptions) (*RestoreResult, error) {
	listing, err := List(opts.ArchivePath)
	if err != nil {
		return nil, err
	}
	m := listing.Manifest
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive: %w", err)
	}

	targets := map[string]string{
		archiveDatabase: firstNonEmpty(opts.DatabasePath, m.OriginalPaths.Database),
	}
	components := ComponentDatabase
	if m.Components.Has(ComponentConfig) && !opts.SkipConfig {
		targets[archiveConfigDir+filepath.Base(m.OriginalPaths.Config)] = firstNonEmpty(opts.ConfigPath, m.OriginalPaths.Config)
		components |= ComponentConfig
	}
	if m.Components.Has(ComponentSSHKeys) && opts.RestoreSSHKeys {
		targets[archiveHostKey] = m.OriginalPaths.SSHHostKey
		targets[archiveAuthorized] = m.OriginalPaths.SSHAuthKeys
		components |= ComponentSSHKeys
	}

	for name, dst := range targets {
		if dst == "" {
			return nil, fmt.Errorf("no target path for %s", name)
		}
		if opts.Force {
			continue
		}
		if _, err := os.Stat(dst); err == nil {
			return nil, fmt.Errorf("%w: %s (use force to overwrite)", ErrExists, dst)
		}
	}

	result := &RestoreResult{Components: components}
	if opts.DryRun {
		for _, f := range listing.Files {
			if dst, ok := targets[f.Path]; ok {
				result.Restored = append(result.Restored, dst)
			}
		}
		return result, nil
	}

	err = walkArchive(opts.ArchivePath, func(hdr *tar.Header, r io.Reader) error {
		if strings.Contains(hdr.Name, "..") {
			return fmt.Errorf("unsafe path in archive: %s", hdr.Name)
		}
		dst, ok := targets[hdr.Name]
		if !ok {
			if hdr.Name != manifestName {
				result.Skipped = append(result.Skipped, hdr.Name)
			}
			return nil
		}
		if err := extractFile(r, dst, os.FileMode(hdr.Mode).Perm()); err != nil {
			return fmt.Errorf("restore %s: %w", hdr.Name, err)
		}
		result.Restored = append(result.Restored, dst)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A stale WAL next to the restored database would be replayed over it.
	dbPath := targets[archiveDatabase]
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}

	log.Info().Str("component", "backup").Str("archive", opts.ArchivePath).
		Str("components", components.String()).Msg("backup restored")
	return result, nil
}

// extractFile writes through a temp file in the target directory and
// renames it into place.
func extractFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
