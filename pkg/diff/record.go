package diff

import (
	"fmt"
	"os"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/pathsafe"
	codec "github.com/honeybbq/uciconfig/pkg/renderer/uci"
	"github.com/honeybbq/uciconfig/pkg/snapshot"
)

// FileDiff compares one raw configuration file by digest. Unified holds a
// unified line diff for added, removed and modified files.
type FileDiff struct {
	Status       Status `json:"status"`
	BeforeDigest string `json:"before_digest,omitempty"`
	AfterDigest  string `json:"after_digest,omitempty"`
	Unified      string `json:"unified,omitempty"`
}

// BlobDiff compares one opaque capture blob by exact string equality.
type BlobDiff struct {
	Status Status `json:"status"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Summary identifies the compared snapshots and totals the record.
type Summary struct {
	Device          string    `json:"device,omitempty"`
	Before          string    `json:"before"`
	After           string    `json:"after"`
	BeforeTime      time.Time `json:"before_time"`
	AfterTime       time.Time `json:"after_time"`
	Changed         bool      `json:"changed"`
	PackagesChanged int       `json:"packages_changed"`
	FilesChanged    int       `json:"files_changed"`
	SystemChanged   int       `json:"system_changed"`
}

// Record is the full comparison of two snapshots.
type Record struct {
	Summary       Summary                `json:"summary"`
	Packages      map[string]PackageDiff `json:"packages"`
	FileDiffs     map[string]FileDiff    `json:"file_diffs"`
	SystemChanges map[string]BlobDiff    `json:"system_changes"`
	Statistics    Statistics             `json:"statistics"`
	Errors        []string               `json:"errors,omitempty"`
}

// PackageNames returns the changed package names, sorted.
func (r *Record) PackageNames() []string {
	return sortedKeys(r.Packages)
}

// FileNames returns the changed file names, sorted.
func (r *Record) FileNames() []string {
	return sortedKeys(r.FileDiffs)
}

// SystemKeys returns the changed capture keys, sorted.
func (r *Record) SystemKeys() []string {
	return sortedKeys(r.SystemChanges)
}

// Snapshots compares two loaded snapshots. A package that failed to parse
// on either side is left out of Packages and Statistics; its change, if any,
// only shows in FileDiffs and the parse error in Errors.
func Snapshots(before, after *snapshot.Snapshot) *Record {
	packages := Packages(parsed(before, after), parsed(after, before))
	rec := &Record{
		Packages:      packages,
		FileDiffs:     fileDiffs(before.Files, after.Files),
		SystemChanges: blobDiffs(before.Captures, after.Captures),
		Statistics:    Stats(packages),
	}

	for _, e := range before.Errors {
		rec.Errors = append(rec.Errors, "before: "+e)
	}
	for _, e := range after.Errors {
		rec.Errors = append(rec.Errors, "after: "+e)
	}

	device := after.Metadata.Device
	if device == "" {
		device = before.Metadata.Device
	}
	rec.Summary = Summary{
		Device:          device,
		Before:          before.Path,
		After:           after.Path,
		BeforeTime:      before.Metadata.Timestamp,
		AfterTime:       after.Metadata.Timestamp,
		PackagesChanged: len(rec.Packages),
		FilesChanged:    len(rec.FileDiffs),
		SystemChanged:   len(rec.SystemChanges),
	}
	rec.Summary.Changed = rec.Summary.PackagesChanged+rec.Summary.FilesChanged+rec.Summary.SystemChanged > 0
	return rec
}

// Dirs loads and compares the snapshots at beforeDir and afterDir.
func Dirs(beforeDir, afterDir string) (*Record, error) {
	before, err := snapshot.Load(beforeDir)
	if err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	after, err := snapshot.Load(afterDir)
	if err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	return Snapshots(before, after), nil
}

// Configs compares two UCI files of package pkg. A missing file counts as
// an absent package; both missing is an error.
func Configs(pkg, beforePath, afterPath string) (*Record, error) {
	before, err := configSnapshot(pkg, beforePath)
	if err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	after, err := configSnapshot(pkg, afterPath)
	if err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	if len(before.Files) == 0 && len(after.Files) == 0 {
		return nil, nxerrors.Errorf(nxerrors.KindIO, "neither %s nor %s exists", beforePath, afterPath)
	}
	return Snapshots(before, after), nil
}

func configSnapshot(pkg, path string) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{
		Path:     path,
		Packages: map[string]*uci.Tree{},
		Files:    map[string]snapshot.File{},
	}
	exists, err := pathsafe.Exists(path)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, err)
	}
	if !exists {
		return snap, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, err)
	}
	tree, err := codec.Decode(pkg, data)
	if err != nil {
		return nil, err
	}
	snap.Packages[pkg] = tree
	snap.Files[pkg] = snapshot.NewFile(pkg, data)
	return snap, nil
}

// parsed returns the packages of snap whose file parsed on both sides.
func parsed(snap, other *snapshot.Snapshot) map[string]*uci.Tree {
	if len(snap.Broken) == 0 && len(other.Broken) == 0 {
		return snap.Packages
	}
	out := make(map[string]*uci.Tree, len(snap.Packages))
	for name, tree := range snap.Packages {
		if snap.IsBroken(name) || other.IsBroken(name) {
			continue
		}
		out[name] = tree
	}
	return out
}

func fileDiffs(before, after map[string]snapshot.File) map[string]FileDiff {
	out := make(map[string]FileDiff)
	for name, file := range before {
		if _, ok := after[name]; !ok {
			out[name] = FileDiff{
				Status:       StatusRemoved,
				BeforeDigest: file.Digest.String(),
				Unified:      unified(name, file.Data, nil),
			}
		}
	}
	for name, file := range after {
		previous, ok := before[name]
		switch {
		case !ok:
			out[name] = FileDiff{
				Status:      StatusAdded,
				AfterDigest: file.Digest.String(),
				Unified:     unified(name, nil, file.Data),
			}
		case previous.Digest != file.Digest:
			out[name] = FileDiff{
				Status:       StatusModified,
				BeforeDigest: previous.Digest.String(),
				AfterDigest:  file.Digest.String(),
				Unified:      unified(name, previous.Data, file.Data),
			}
		}
	}
	return out
}

func unified(name string, before, after []byte) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

func blobDiffs(before, after map[string]string) map[string]BlobDiff {
	out := make(map[string]BlobDiff)
	for key, value := range before {
		if _, ok := after[key]; !ok {
			out[key] = BlobDiff{Status: StatusRemoved, Before: value}
		}
	}
	for key, value := range after {
		previous, ok := before[key]
		switch {
		case !ok:
			out[key] = BlobDiff{Status: StatusAdded, After: value}
		case previous != value:
			out[key] = BlobDiff{Status: StatusModified, Before: previous, After: value}
		}
	}
	return out
}

// splitLines differs from difflib.SplitLines only for empty input, which
// has no lines at all.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return difflib.SplitLines(string(data))
}
