package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// FileResult is the per-file slot of a directory merge.
type FileResult struct {
	Success bool     `json:"success"`
	Outcome *Outcome `json:"result,omitempty"`
	Error   string   `json:"error,omitempty"`
	Err     error    `json:"-"`
}

// DirectoryResult reports a directory merge. Success means the directory
// was walked; individual files may still have failed.
type DirectoryResult struct {
	Success bool                  `json:"success"`
	Files   map[string]FileResult `json:"results"`
}

// Failed returns the names of the files that did not merge, sorted.
func (r *DirectoryResult) Failed() []string {
	var names []string
	for name, result := range r.Files {
		if !result.Success {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MergeDirectory merges every file of sourceDir into the file of the same
// name in targetDir, in parallel. The file name is the package name. A file
// that fails does not stop the others; an unreadable sourceDir fails the
// whole call. Outcomes enter the running log sorted by file name.
func (e *Engine) MergeDirectory(ctx context.Context, sourceDir, targetDir string) (*DirectoryResult, error) {
	source, err := e.paths.Check(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	target, err := e.paths.Check(targetDir)
	if err != nil {
		return nil, fmt.Errorf("target directory: %w", err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("read source directory %s: %w", sourceDir, err))
	}

	var (
		mu      sync.Mutex
		results = make(map[string]FileResult, len(entries))
		group   errgroup.Group
	)
	group.SetLimit(e.opts.concurrency())

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		group.Go(func() error {
			var result FileResult
			if err := ctx.Err(); err != nil {
				result = FileResult{Err: err, Error: err.Error()}
			} else {
				outcome, err := e.mergeConfig(name, filepath.Join(source, name), filepath.Join(target, name))
				result = FileResult{Success: err == nil, Outcome: outcome, Err: err}
				if err != nil {
					result.Error = err.Error()
					e.logger.Warn("file merge failed", "file", name, "error", err)
				}
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	// the running log follows file name order, not completion order
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.record(results[name].Outcome)
	}

	out := &DirectoryResult{Success: true, Files: results}
	if err := ctx.Err(); err != nil {
		out.Success = false
		return out, fmt.Errorf("merge directory %s: %w", sourceDir, err)
	}

	e.logger.Info("merged directory",
		"source", sourceDir,
		"target", targetDir,
		"files", len(results),
		"failed", len(out.Failed()),
	)
	return out, nil
}
