// Package merge merges UCI configuration fragments into live configuration.
//
// Merging is additive: sections and options missing from the target are
// added, lists are merged, and a scalar present on both sides with different
// values is a conflict that keeps the existing value. Every merge returns an
// Outcome holding the merged tree and the changes, conflicts and rejections
// it produced; the Engine also keeps a running log of all outcomes so callers
// can ask for a summary after a batch.
package merge

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/dedupe"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/pathsafe"
	codec "github.com/honeybbq/uciconfig/pkg/renderer/uci"
)

// Engine merges UCI trees. It is safe for concurrent use; the running log is
// guarded by a mutex and each call also returns its own Outcome.
type Engine struct {
	opts   Options
	paths  *pathsafe.Validator
	logger *slog.Logger

	mu         sync.Mutex
	changes    []Change
	conflicts  []Conflict
	rejections []Rejection
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	strategy, err := dedupe.ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindValidation, err)
	}
	opts.Strategy = strategy

	policy, err := ParseNetworkPolicy(string(opts.NetworkPolicy))
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindValidation, err)
	}
	opts.NetworkPolicy = policy

	paths, err := pathsafe.New(opts.AllowedRoots...)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "merge")
	if roots := paths.Roots(); len(roots) == 0 {
		logger.Warn("no allowed roots configured, accepting any path without '..'")
	} else {
		logger.Debug("allowed roots", "roots", roots)
	}

	return &Engine{
		opts:   opts,
		paths:  paths,
		logger: logger,
	}, nil
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// MergeConfig merges the UCI file at sourcePath into the one at targetPath.
// A missing target is treated as an empty package. The source must exist,
// parse and hold at least one section.
func (e *Engine) MergeConfig(pkg, sourcePath, targetPath string) (*Outcome, error) {
	out, err := e.mergeConfig(pkg, sourcePath, targetPath)
	e.record(out)
	return out, err
}

func (e *Engine) mergeConfig(pkg, sourcePath, targetPath string) (*Outcome, error) {
	if pkg == "" {
		return nil, nxerrors.Errorf(nxerrors.KindValidation, "package name is required")
	}

	source, err := e.paths.Check(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if _, err := e.paths.Check(targetPath); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("read source %s: %w", sourcePath, err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nxerrors.Errorf(nxerrors.KindEmpty, "source %s is empty", sourcePath)
	}

	incoming, err := codec.Decode(pkg, data)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sourcePath, err)
	}
	if incoming.Len() == 0 {
		return nil, nxerrors.Errorf(nxerrors.KindEmpty, "source %s has no sections", sourcePath)
	}

	return e.mergeTree(incoming, sourcePath, targetPath)
}

// MergeTree merges an already parsed tree into the package at targetPath.
// source labels the merge_config change.
func (e *Engine) MergeTree(incoming *uci.Tree, source, targetPath string) (*Outcome, error) {
	out, err := e.mergeTree(incoming, source, targetPath)
	e.record(out)
	return out, err
}

// mergeTree does the work of MergeTree without touching the running log.
func (e *Engine) mergeTree(incoming *uci.Tree, source, targetPath string) (*Outcome, error) {
	if incoming == nil {
		return nil, nxerrors.Errorf(nxerrors.KindValidation, "incoming tree is nil")
	}
	target, err := e.paths.Check(targetPath)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	existing, err := loadTarget(incoming.Package, target)
	if err != nil {
		return nil, err
	}

	out, err := e.merge(existing, incoming, incoming.Package)
	if err != nil {
		return out, err
	}
	out.Changes = append(out.Changes, Change{
		Action: ActionMergeConfig,
		Config: incoming.Package,
		Source: source,
	})

	e.logger.Info("merged package",
		"package", incoming.Package,
		"source", source,
		"target", targetPath,
		"changes", len(out.Changes),
		"conflicts", len(out.Conflicts),
		"dry_run", e.opts.DryRun,
	)
	return out, nil
}

// MergeSections merges incoming into existing for pkg. Neither input is
// modified. The only error is a KindNetworkSafety refusal under
// NetworkPolicyFail, returned together with the outcome that explains it.
func (e *Engine) MergeSections(existing, incoming *uci.Tree, pkg string) (*Outcome, error) {
	out, err := e.merge(existing, incoming, pkg)
	e.record(out)
	return out, err
}

// SaveConfig writes tree to targetPath unless the engine runs dry. The
// save_config change is logged either way.
func (e *Engine) SaveConfig(tree *uci.Tree, targetPath string) error {
	if tree == nil {
		return nxerrors.Errorf(nxerrors.KindValidation, "tree is nil")
	}
	target, err := e.paths.Check(targetPath)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	change := Change{Action: ActionSaveConfig, Config: tree.Package, Source: targetPath}
	e.mu.Lock()
	e.changes = append(e.changes, change)
	e.mu.Unlock()

	if e.opts.DryRun {
		e.logger.Info("dry run, not saving", "package", tree.Package, "target", targetPath)
		return nil
	}
	if err := writeAtomic(target, codec.Encode(tree)); err != nil {
		return nxerrors.New(nxerrors.KindIO, fmt.Errorf("save %s: %w", targetPath, err))
	}
	e.logger.Info("saved package", "package", tree.Package, "target", targetPath)
	return nil
}

// Summary returns a copy of the accumulated log.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		Changes:    append([]Change(nil), e.changes...),
		Conflicts:  append([]Conflict(nil), e.conflicts...),
		Rejections: append([]Rejection(nil), e.rejections...),
		DryRun:     e.opts.DryRun,
	}
}

// Reset clears the accumulated log.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = nil
	e.conflicts = nil
	e.rejections = nil
}

func (e *Engine) record(out *Outcome) {
	if out == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, out.Changes...)
	e.conflicts = append(e.conflicts, out.Conflicts...)
	e.rejections = append(e.rejections, out.Rejections...)
}

func loadTarget(pkg, path string) (*uci.Tree, error) {
	exists, err := pathsafe.Exists(path)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("stat target %s: %w", path, err))
	}
	if !exists {
		return uci.NewTree(pkg), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("read target %s: %w", path, err))
	}
	tree, err := codec.Decode(pkg, data)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", path, err)
	}
	return tree, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
