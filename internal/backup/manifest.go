package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tweetsaver/internal/version"
)

const (
	ManifestVersion = "1"
	manifestName    = "manifest.json"
)

var (
	// ErrNoManifest is returned for an archive without a manifest.
	ErrNoManifest = errors.New("manifest.json not found in archive")
	// ErrExists is returned by Restore when a target exists and Force is off.
	ErrExists = errors.New("target file exists")
)

func newManifest(components Components, paths OriginalPaths, db DatabaseInfo) *Manifest {
	return &Manifest{
		Version:       ManifestVersion,
		Timestamp:     time.Now().UTC(),
		AppVersion:    version.Full(),
		Components:    components,
		OriginalPaths: paths,
		Database:      db,
	}
}

// Validate checks that a manifest is usable for restore.
func (m *Manifest) Validate() error {
	switch {
	case m.Version == "":
		return fmt.Errorf("manifest missing version")
	case m.Version != ManifestVersion:
		return fmt.Errorf("unsupported manifest version %q (expected %q)", m.Version, ManifestVersion)
	case m.Timestamp.IsZero():
		return fmt.Errorf("manifest missing timestamp")
	case !m.Components.Has(ComponentDatabase):
		return fmt.Errorf("archive has no database")
	}
	return nil
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	return &m, nil
}

func marshalManifest(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}
