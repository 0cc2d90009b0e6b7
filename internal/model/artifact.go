package model

// MetadataSchemaVersion identifies the layout of the metadata document.
const MetadataSchemaVersion = 2

// Metadata is the document packaged next to the binary inside the archive.
type Metadata struct {
	SchemaVersion int    `yaml:"schema_version"`
	Description   string `yaml:"description"`
	Version       string `yaml:"version"`
	Commit        string `yaml:"commit"`
	APIVersion    string `yaml:"vulkan_api_version"`
	Variant       string `yaml:"variant"`
	BuildDate     string `yaml:"build_date"`
}

// PackageArtifact is the final output of a run: the checksummed archive plus
// the facts it was derived from.
type PackageArtifact struct {
	Filename    string
	ArchivePath Path
	BinaryPath  Path
	Metadata    Metadata
	Checksum    string
}
