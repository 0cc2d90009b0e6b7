package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"vkdforge.dev/pkg/vkdforge/internal/adapter"
	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// fallbackAPIVersion is used when the source tree carries no parseable
// Vulkan API version header.
const fallbackAPIVersion = "1.3"

// apiVersionRe extracts the Vulkan API version the tree targets, e.g. from
// `#define VKD3D_MIN_API_VERSION VK_API_VERSION_1_1`.
var apiVersionRe = regexp.MustCompile(`VK_API_VERSION_(\d+)_(\d+)`)

// PackageArgs carries everything the packager consumes. It only reads facts
// produced by earlier stages; it never mutates source.
type PackageArgs struct {
	// BuildOutput is the shared library the external build tool produced.
	BuildOutput m.Path
	// Tree is the mutated source tree, read only for the API version header.
	Tree m.Path
	// APIHeader is the path, relative to Tree, probed for the API version.
	APIHeader string
	Resolved  m.ResolvedSource
	Variant   string
	// Suffix is the variant-specific short token in the filename.
	Suffix string
	// BinaryName renames the binary inside the archive; empty keeps the
	// build output's base name.
	BinaryName string
	OutputDir  m.Path
	BuildDate  time.Time
}

// Packager assembles the final archive: renamed binary plus metadata
// document, checksummed, with a deterministic name.
type Packager interface {
	Package(ctx context.Context, args PackageArgs) (*m.PackageArtifact, error)
}

type packager struct {
	fs      adapter.SourceFSAdapter
	archive adapter.ArchiveWriter
}

// NewPackager constructs a Packager.
func NewPackager(fs adapter.SourceFSAdapter, archive adapter.ArchiveWriter) Packager {
	return &packager{fs: fs, archive: archive}
}

func (p *packager) Package(ctx context.Context, args PackageArgs) (*m.PackageArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := p.fs.FileInfo(args.BuildOutput)
	if err != nil || info.IsDir() {
		return nil, &m.PackagingError{Path: args.BuildOutput, Err: fmt.Errorf("build output missing: %w", err)}
	}

	filename := ArtifactFilename(args.Variant, args.Resolved.Version, args.Suffix, args.BuildDate)
	archivePath := p.fs.JoinPath(string(args.OutputDir), filename)

	metadata := m.Metadata{
		SchemaVersion: m.MetadataSchemaVersion,
		Description:   fmt.Sprintf("%s D3D12 translation driver, upstream %s", args.Variant, args.Resolved.Ref),
		Version:       args.Resolved.Version,
		Commit:        args.Resolved.Commit,
		APIVersion:    p.apiVersion(args),
		Variant:       args.Variant,
		BuildDate:     args.BuildDate.UTC().Format("2006-01-02"),
	}

	metadataPath, err := p.writeMetadata(args.OutputDir, metadata)
	if err != nil {
		return nil, &m.PackagingError{Path: archivePath, Err: err}
	}

	binaryName := args.BinaryName
	if binaryName == "" {
		binaryName = filepath.Base(string(args.BuildOutput))
	}

	entries := []adapter.ArchiveEntry{
		{Name: binaryName, Source: args.BuildOutput},
		{Name: "metadata.yaml", Source: metadataPath},
	}

	if err := p.archive.WriteArchive(archivePath, entries); err != nil {
		return nil, &m.PackagingError{Path: archivePath, Err: err}
	}

	checksum, err := p.archive.ChecksumFile(archivePath)
	if err != nil {
		return nil, &m.PackagingError{Path: archivePath, Err: err}
	}

	checksumPath := string(archivePath) + ".sha256"
	checksumLine := fmt.Sprintf("%s  %s\n", checksum, filename)

	if err := p.fs.WriteFile(m.Path(checksumPath), []byte(checksumLine), 0o644); err != nil {
		return nil, &m.PackagingError{Path: m.Path(checksumPath), Err: err}
	}

	slog.Info("artifact packaged", "archive", archivePath, "checksum", checksum)

	return &m.PackageArtifact{
		Filename:    filename,
		ArchivePath: archivePath,
		BinaryPath:  args.BuildOutput,
		Metadata:    metadata,
		Checksum:    checksum,
	}, nil
}

// ArtifactFilename derives the deterministic archive name from the variant,
// sanitized version, variant suffix and build date.
func ArtifactFilename(variant, version, suffix string, date time.Time) string {
	name := fmt.Sprintf("%s-%s", variant, m.SanitizeVersion(version))
	if suffix != "" {
		name += "-" + suffix
	}

	return fmt.Sprintf("%s-%s.tar.gz", name, date.UTC().Format("20060102"))
}

// apiVersion parses the targeted Vulkan API version out of the tree, with a
// hardcoded fallback when the header is absent or has drifted.
func (p *packager) apiVersion(args PackageArgs) string {
	if args.APIHeader == "" {
		return fallbackAPIVersion
	}

	content, err := p.fs.ReadFile(p.fs.JoinPath(string(args.Tree), args.APIHeader))
	if err != nil {
		return fallbackAPIVersion
	}

	match := apiVersionRe.FindSubmatch(content)
	if match == nil {
		return fallbackAPIVersion
	}

	return fmt.Sprintf("%s.%s", match[1], match[2])
}

// writeMetadata renders the metadata document next to the archive before it
// is copied into it.
func (p *packager) writeMetadata(outputDir m.Path, metadata m.Metadata) (m.Path, error) {
	raw, err := yaml.Marshal(metadata)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(string(outputDir), 0o750); err != nil {
		return "", err
	}

	path := p.fs.JoinPath(string(outputDir), "metadata.yaml")
	if err := p.fs.WriteFile(path, raw, 0o644); err != nil {
		return "", err
	}

	return path, nil
}
