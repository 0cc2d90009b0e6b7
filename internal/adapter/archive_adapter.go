package adapter

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// ArchiveEntry names one file to place in an archive.
type ArchiveEntry struct {
	// Name is the entry name inside the archive.
	Name string
	// Source is the file on disk to read.
	Source m.Path
}

// ArchiveWriter assembles the final artifact archive and its checksum.
type ArchiveWriter interface {
	// WriteArchive creates a gzipped tarball containing exactly the given
	// entries, in order.
	WriteArchive(archivePath m.Path, entries []ArchiveEntry) error

	// ChecksumFile returns the hex SHA-256 of the file at path.
	ChecksumFile(path m.Path) (string, error)
}

// LocalArchiveWriter writes tar.gz archives on the local filesystem.
type LocalArchiveWriter struct{}

// NewLocalArchiveWriter constructs a LocalArchiveWriter.
func NewLocalArchiveWriter() *LocalArchiveWriter {
	return &LocalArchiveWriter{}
}

// WriteArchive creates a gzipped tarball with exactly the given entries.
func (w *LocalArchiveWriter) WriteArchive(archivePath m.Path, entries []ArchiveEntry) error {
	if err := os.MkdirAll(filepath.Dir(string(archivePath)), 0o750); err != nil {
		return err
	}

	// #nosec G304 - archive path is constructed by the packager
	file, err := os.Create(string(archivePath))
	if err != nil {
		return err
	}

	defer func() { _ = file.Close() }()

	gzWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzWriter)

	for _, entry := range entries {
		if err := w.writeEntry(tarWriter, entry); err != nil {
			return fmt.Errorf("archive entry %s: %w", entry.Name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}

	if err := gzWriter.Close(); err != nil {
		return err
	}

	return file.Close()
}

func (w *LocalArchiveWriter) writeEntry(tw *tar.Writer, entry ArchiveEntry) error {
	info, err := os.Stat(string(entry.Source))
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	header.Name = entry.Name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	// #nosec G304 - entry sources are produced by earlier pipeline stages
	src, err := os.Open(string(entry.Source))
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	_, err = io.Copy(tw, src)

	return err
}

// ChecksumFile returns the hex SHA-256 of the file at path.
func (w *LocalArchiveWriter) ChecksumFile(path m.Path) (string, error) {
	// #nosec G304 - path is the archive this writer just produced
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
