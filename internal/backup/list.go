package backup

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

// List reads an archive's manifest and file table without extracting it.
func List(archivePath string) (*Listing, error) {
	var (
		listing  Listing
		manifest *Manifest
	)
	err := walkArchive(archivePath, func(hdr *tar.Header, r io.Reader) error {
		if hdr.Name == manifestName {
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			if manifest, err = parseManifest(data); err != nil {
				return err
			}
		}
		listing.Files = append(listing.Files, FileEntry{
			Path: hdr.Name,
			Size: hdr.Size,
			Mode: os.FileMode(hdr.Mode).String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, ErrNoManifest
	}
	listing.Manifest = *manifest
	return &listing, nil
}

// walkArchive calls fn for every regular file in a .tar.gz.
func walkArchive(archivePath string, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}
