package uciconfig

import (
	"io/fs"
	"time"
)

// Package represents a single rendered UCI package, one file under /etc/config/
// (e.g., "system", "network", "firewall").
type Package struct {
	Name    string // Package name (e.g., "system", "network")
	Content []byte // Configuration content
}

// File represents an additional file (certificates, scripts, keys, etc.)
// that should be deployed alongside the configuration packages.
type File struct {
	Path    string      // Absolute file path where the file should be placed
	Content []byte      // File content (binary-safe)
	Mode    fs.FileMode // Unix file permissions (e.g., 0644, 0600)
}

// Metadata stores information about how and when the bundle was generated.
type Metadata struct {
	Format    string            // Format identifier ("uci")
	Backend   string            // Backend name that generated this bundle
	Generated time.Time         // Timestamp when the bundle was created
	Version   string            // Optional version tag
	Custom    map[string]string // Extensible metadata
}

// Bundle is the complete output of a render operation: one or more
// configuration packages, optional additional files and generation metadata.
// A Bundle is also the input of the UCI parser.
type Bundle struct {
	Packages []Package
	Files    []File
	Metadata Metadata
}

// NewBundle creates an empty Bundle with initialized metadata.
// The Generated timestamp is set to the current time.
func NewBundle(format, backend string) *Bundle {
	return &Bundle{
		Packages: make([]Package, 0),
		Files:    make([]File, 0),
		Metadata: Metadata{
			Format:    format,
			Backend:   backend,
			Generated: time.Now(),
			Custom:    make(map[string]string),
		},
	}
}

// Package returns the named package.
func (b *Bundle) Package(name string) (Package, bool) {
	if b == nil {
		return Package{}, false
	}
	for _, pkg := range b.Packages {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return Package{}, false
}
