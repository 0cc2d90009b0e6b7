package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	m "vkdforge.dev/pkg/vkdforge/internal/model"
)

// GPUProfile describes the adapter identity a build reports.
type GPUProfile struct {
	Name        string `yaml:"name"`
	VendorID    string `yaml:"vendor_id"`
	DeviceID    string `yaml:"device_id"`
	Description string `yaml:"description"`
	MemoryMiB   int    `yaml:"memory_mib"`
}

// DefaultProfile is the built-in reference identity.
var DefaultProfile = GPUProfile{
	Name:        "rx6700xt",
	VendorID:    "0x1002",
	DeviceID:    "0x73DF",
	Description: "AMD Radeon RX 6700 XT",
	MemoryMiB:   16384,
}

type profileFile struct {
	Profiles []GPUProfile `yaml:"profiles"`
}

// LoadProfiles reads additional GPU profiles from a YAML document.
func LoadProfiles(path string) ([]GPUProfile, error) {
	// #nosec G304 - profile location is operator configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var doc profileFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	for i, p := range doc.Profiles {
		if p.Name == "" || p.VendorID == "" || p.DeviceID == "" {
			return nil, fmt.Errorf("profile %d: name, vendor_id and device_id are required", i)
		}
	}

	return doc.Profiles, nil
}

// Find returns the named profile, searching the given profiles first and the
// built-in default last.
func Find(profiles []GPUProfile, name string) (GPUProfile, error) {
	if name == "" || name == DefaultProfile.Name {
		return DefaultProfile, nil
	}

	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}

	return GPUProfile{}, fmt.Errorf("unknown GPU profile %q", name)
}

// LoadPatches reads the *.patch files of a directory, in lexical order, into
// patch mutations. A ".opt." infix in the filename marks a patch optional;
// everything else is required. An empty or missing directory is fine: not
// every variant ships patches.
func LoadPatches(dir string) ([]m.Mutation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read patch dir: %w", err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".patch") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	mutations := make([]m.Mutation, 0, len(names))

	for _, name := range names {
		// #nosec G304 - patch files come from the configured patch dir
		diff, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read patch %s: %w", name, err)
		}

		required := !strings.Contains(name, ".opt.")
		id := strings.TrimSuffix(name, ".patch")

		mutations = append(mutations, m.NewPatch(id, diff, required))
	}

	return mutations, nil
}
