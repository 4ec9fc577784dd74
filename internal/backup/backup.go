package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	archiveDatabase    = "database/saved.db"
	archiveConfigDir   = "config/"
	archiveHostKey     = "ssh/ssh_host_key"
	archiveAuthorized  = "ssh/authorized_keys"
	defaultArchiveName = "tweetsaver-backup-%s.tar.gz"
)

// Create writes a .tar.gz holding a consistent snapshot of the saved set
// and, when configured, the config file and SSH keys.
func Create(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	dbPath, err := filepath.Abs(opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "tweetsaver-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "saved.db")
	dbInfo, err := snapshotDatabase(ctx, dbPath, snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	components := ComponentDatabase
	paths := OriginalPaths{Database: dbPath}
	if opts.ConfigPath != "" {
		if paths.Config, err = filepath.Abs(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		components |= ComponentConfig
	}
	if opts.SSHHostKeyPath != "" && opts.SSHAuthorizedKeysPath != "" {
		paths.SSHHostKey = opts.SSHHostKeyPath
		paths.SSHAuthKeys = opts.SSHAuthorizedKeysPath
		components |= ComponentSSHKeys
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = fmt.Sprintf(defaultArchiveName, time.Now().Format("20060102-150405"))
	}
	if outPath, err = filepath.Abs(outPath); err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	result := &Result{
		ArchivePath: outPath,
		Components:  components,
		SavedCount:  dbInfo.SavedCount,
	}

	if err := writeArchive(outPath, newManifest(components, paths, dbInfo), snapshot, result); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	if stat, err := os.Stat(outPath); err == nil {
		result.TotalSize = stat.Size()
	}
	result.Duration = time.Since(start)

	log.Info().Str("component", "backup").Str("archive", outPath).Int("saved", result.SavedCount).
		Int("files", result.FileCount).Msg("backup created")
	return result, nil
}

func writeArchive(outPath string, manifest *Manifest, snapshot string, result *Result) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	data, err := marshalManifest(manifest)
	if err != nil {
		return err
	}
	if err := writeTarBytes(tw, manifestName, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := writeTarFile(tw, archiveDatabase, snapshot); err != nil {
		return fmt.Errorf("write database: %w", err)
	}
	result.FileCount = 2

	if manifest.Components.Has(ComponentConfig) {
		name := archiveConfigDir + filepath.Base(manifest.OriginalPaths.Config)
		if err := writeTarFile(tw, name, manifest.OriginalPaths.Config); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("config not archived: %v", err))
		} else {
			result.FileCount++
		}
	}

	if manifest.Components.Has(ComponentSSHKeys) {
		for name, path := range map[string]string{
			archiveHostKey:    manifest.OriginalPaths.SSHHostKey,
			archiveAuthorized: manifest.OriginalPaths.SSHAuthKeys,
		} {
			if err := writeTarFile(tw, name, path); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s not archived: %v", name, err))
				continue
			}
			result.FileCount++
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return out.Close()
}

// snapshotDatabase copies the store with VACUUM INTO, which yields a single
// file with no WAL, falling back to a plain copy.
func snapshotDatabase(ctx context.Context, srcPath, dstPath string) (DatabaseInfo, error) {
	info := DatabaseInfo{}

	stat, err := os.Stat(srcPath)
	if err != nil {
		return info, fmt.Errorf("stat database: %w", err)
	}
	info.Size = stat.Size()

	db, err := sql.Open("sqlite", srcPath)
	if err == nil {
		defer db.Close()

		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM saved_tweets").Scan(&n); err == nil {
			info.SavedCount = n
		}

		_, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(dstPath, "'", "''")))
		if err == nil {
			return info, nil
		}
		log.Debug().Err(err).Str("component", "backup").Msg("VACUUM INTO failed, copying file")
	}

	if err := copyFile(srcPath, dstPath); err != nil {
		return info, fmt.Errorf("copy database: %w", err)
	}
	return info, nil
}

func writeTarBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

func writeTarFile(tw *tar.Writer, name, diskPath string) error {
	f, err := os.Open(diskPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    int64(fi.Mode().Perm()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
