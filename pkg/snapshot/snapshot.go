// Package snapshot loads captured device snapshots from disk.
//
// A snapshot is a directory:
//
//	<snap>/metadata.json     device, timestamp and free-form fields (JSONC accepted)
//	<snap>/config/<package>  UCI package files
//	<snap>/*.json            system, network and service captures
//
// When there is no config/ directory, regular files at the snapshot root
// that are not JSON are read as packages.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	codec "github.com/honeybbq/uciconfig/pkg/renderer/uci"
)

const (
	metadataFile = "metadata.json"
	configDir    = "config"
)

// Digest is the BLAKE3-256 hash of a file.
type Digest [32]byte

// String returns the digest in hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// File is one raw configuration file of a snapshot.
type File struct {
	Name   string
	Data   []byte
	Digest Digest
}

// Snapshot is a loaded snapshot directory.
type Snapshot struct {
	Path     string
	Metadata Metadata
	// Packages holds the files that parsed as UCI, keyed by package name.
	Packages map[string]*uci.Tree
	// Files holds every configuration file, parsed or not.
	Files map[string]File
	// Broken names the files of Files that did not parse as UCI.
	Broken map[string]struct{}
	// Captures holds the flattened JSON captures as "<file>.<key>" blobs.
	Captures map[string]string
	// Errors lists files that could not be parsed. They still appear in Files.
	Errors []string
}

// Load reads the snapshot at dir. Only an unreadable directory fails the
// call; broken package files and captures are recorded in Errors.
func Load(dir string) (*Snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("snapshot %s: %w", dir, err))
	}
	if !info.IsDir() {
		return nil, nxerrors.Errorf(nxerrors.KindValidation, "snapshot %s is not a directory", dir)
	}

	snap := &Snapshot{
		Path:     dir,
		Packages: make(map[string]*uci.Tree),
		Files:    make(map[string]File),
		Broken:   make(map[string]struct{}),
		Captures: make(map[string]string),
	}

	meta, err := readMetadata(dir, info)
	if err != nil {
		snap.Errors = append(snap.Errors, err.Error())
	}
	snap.Metadata = meta

	if err := snap.loadPackages(dir); err != nil {
		return nil, err
	}
	if err := snap.loadCaptures(dir); err != nil {
		return nil, err
	}
	sort.Strings(snap.Errors)
	return snap, nil
}

// IsBroken reports whether the file name exists but did not parse.
func (s *Snapshot) IsBroken(name string) bool {
	_, ok := s.Broken[name]
	return ok
}

// PackageNames returns the parsed package names, sorted.
func (s *Snapshot) PackageNames() []string {
	names := make([]string, 0, len(s.Packages))
	for name := range s.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Snapshot) loadPackages(dir string) error {
	root := filepath.Join(dir, configDir)
	rootOnly := false
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		root = dir
		rootOnly = true
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nxerrors.New(nxerrors.KindIO, fmt.Errorf("read %s: %w", root, err))
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if rootOnly && strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		s.Files[name] = NewFile(name, data)

		tree, err := codec.Decode(name, data)
		if err != nil {
			s.Broken[name] = struct{}{}
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		s.Packages[name] = tree
	}
	return nil
}

func (s *Snapshot) loadCaptures(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nxerrors.New(nxerrors.KindIO, fmt.Errorf("read %s: %w", dir, err))
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == metadataFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if err := flattenCapture(strings.TrimSuffix(name, ".json"), data, s.Captures); err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}
	return nil
}

// flattenCapture turns a JSON object into "<prefix>.<key>" blobs. Strings are
// stored as is, everything else as compact JSON with sorted object keys.
// Anything but an object becomes a single blob named prefix.
func flattenCapture(prefix string, data []byte, into map[string]string) error {
	var value any
	if err := json.Unmarshal(jsonc.ToJSON(data), &value); err != nil {
		return fmt.Errorf("parse capture: %w", err)
	}

	object, ok := value.(map[string]any)
	if !ok {
		blob, err := blobText(value)
		if err != nil {
			return err
		}
		into[prefix] = blob
		return nil
	}
	for key, item := range object {
		blob, err := blobText(item)
		if err != nil {
			return err
		}
		into[prefix+"."+key] = blob
	}
	return nil
}

func blobText(value any) (string, error) {
	if text, ok := value.(string); ok {
		return text, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewFile wraps data and its digest.
func NewFile(name string, data []byte) File {
	return File{Name: name, Data: data, Digest: blake3.Sum256(data)}
}

// Exists reports whether dir holds a snapshot, that is a metadata file or a
// config directory.
func Exists(dir string) bool {
	for _, name := range []string{metadataFile, configDir} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false
		}
	}
	return false
}

// Checksum hashes the names and digests of all configuration files, so two
// snapshots with identical files share a checksum.
func (s *Snapshot) Checksum() Digest {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	hasher := blake3.New()
	for _, name := range names {
		digest := s.Files[name].Digest
		hasher.Write([]byte(name))
		hasher.Write([]byte{0})
		hasher.Write(digest[:])
	}
	var sum Digest
	copy(sum[:], hasher.Sum(nil))
	return sum
}
