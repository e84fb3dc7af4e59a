// Package pathsafe validates filesystem paths before the engine touches them.
//
// A path is accepted only when it contains no ".." segment and, after
// resolving symlinks, lies inside one of the allowed roots. Paths that do not
// exist yet are resolved through their deepest existing ancestor so a missing
// merge target can still be validated.
package pathsafe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// Validator checks paths against an allow-list of root directories.
type Validator struct {
	roots []string
}

// New builds a Validator. Roots are canonicalized once here. With no roots
// every path without ".." segments is accepted.
func New(roots ...string) (*Validator, error) {
	v := &Validator{}
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		if hasDotDot(root) {
			return nil, nxerrors.Errorf(nxerrors.KindValidation, "allowed root %q contains '..'", root)
		}
		canonical, err := canonicalize(root)
		if err != nil {
			return nil, nxerrors.New(nxerrors.KindValidation, fmt.Errorf("allowed root %q: %w", root, err))
		}
		v.roots = append(v.roots, canonical)
	}
	return v, nil
}

// Roots returns the canonical allowed roots.
func (v *Validator) Roots() []string {
	roots := make([]string, len(v.roots))
	copy(roots, v.roots)
	return roots
}

// Check returns the canonical form of path, or a KindPathSafety error.
func (v *Validator) Check(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nxerrors.Errorf(nxerrors.KindPathSafety, "empty path")
	}
	if strings.ContainsRune(path, 0) {
		return "", nxerrors.Errorf(nxerrors.KindPathSafety, "path %q contains a NUL byte", path)
	}
	if hasDotDot(path) {
		return "", nxerrors.Errorf(nxerrors.KindPathSafety, "path %q contains '..'", path)
	}

	canonical, err := canonicalize(path)
	if err != nil {
		return "", nxerrors.New(nxerrors.KindPathSafety, fmt.Errorf("resolve %q: %w", path, err))
	}
	if len(v.roots) == 0 {
		return canonical, nil
	}
	for _, root := range v.roots {
		if within(root, canonical) {
			return canonical, nil
		}
	}
	return "", nxerrors.Errorf(nxerrors.KindPathSafety, "path %q is outside the allowed roots", path)
}

func hasDotDot(path string) bool {
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// canonicalize makes path absolute and resolves symlinks of its deepest
// existing ancestor, then re-appends the missing tail.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	var tail []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
	}
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Exists reports whether a canonical path exists, separating "missing" from
// other stat failures.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
