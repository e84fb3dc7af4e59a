// Package diff compares UCI configuration trees and snapshot captures.
//
// Options are compared with uci.Value.Equivalent, so a list and the scalar
// holding its space-joined items are equal. Anonymous sections are matched
// by their positional identifier (@type[n]); reordering anonymous sections
// between two captures shows up as modifications of the sections that moved.
package diff

import (
	"sort"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
)

// Status classifies an entry of a diff.
type Status string

const (
	StatusAdded    Status = "added"
	StatusRemoved  Status = "removed"
	StatusModified Status = "modified"
)

// OptionDiff is a changed option. Before is nil for added options and After
// is nil for removed ones.
type OptionDiff struct {
	Status Status     `json:"status"`
	Before *uci.Value `json:"before,omitempty"`
	After  *uci.Value `json:"after,omitempty"`
}

// SectionDiff is a changed section. For added and removed sections Options
// lists every option of the section with the same status.
type SectionDiff struct {
	Status      Status                `json:"status"`
	Type        string                `json:"type"`
	TypeChanged bool                  `json:"type_changed,omitempty"`
	BeforeType  string                `json:"before_type,omitempty"`
	Options     map[string]OptionDiff `json:"options,omitempty"`
}

// PackageDiff is a changed package.
type PackageDiff struct {
	Status   Status                 `json:"status"`
	Sections map[string]SectionDiff `json:"sections,omitempty"`
}

// Changed reports whether the diff holds anything.
func (d PackageDiff) Changed() bool {
	return d.Status != "" && (d.Status != StatusModified || len(d.Sections) > 0)
}

// SectionIDs returns the changed section identifiers, sorted.
func (d PackageDiff) SectionIDs() []string {
	return sortedKeys(d.Sections)
}

// OptionNames returns the changed option names, sorted.
func (d SectionDiff) OptionNames() []string {
	return sortedKeys(d.Options)
}

// Trees diffs one package. A nil before means the package was added, a nil
// after that it was removed. Identical trees give a PackageDiff for which
// Changed is false.
func Trees(before, after *uci.Tree) PackageDiff {
	switch {
	case before == nil && after == nil:
		return PackageDiff{}
	case before == nil:
		return PackageDiff{Status: StatusAdded, Sections: wholeSections(after, StatusAdded)}
	case after == nil:
		return PackageDiff{Status: StatusRemoved, Sections: wholeSections(before, StatusRemoved)}
	}

	sections := make(map[string]SectionDiff)
	for _, section := range before.Sections() {
		id := section.ID()
		if _, ok := after.Section(id); !ok {
			sections[id] = wholeSection(section, StatusRemoved)
		}
	}
	for _, section := range after.Sections() {
		id := section.ID()
		previous, ok := before.Section(id)
		if !ok {
			sections[id] = wholeSection(section, StatusAdded)
			continue
		}
		if sd, changed := compareSections(previous, section); changed {
			sections[id] = sd
		}
	}

	if len(sections) == 0 {
		return PackageDiff{Status: StatusModified}
	}
	return PackageDiff{Status: StatusModified, Sections: sections}
}

// Packages diffs two sets of packages keyed by name. Only changed packages
// are returned.
func Packages(before, after map[string]*uci.Tree) map[string]PackageDiff {
	out := make(map[string]PackageDiff)
	for name, tree := range before {
		if _, ok := after[name]; !ok {
			out[name] = Trees(tree, nil)
		}
	}
	for name, tree := range after {
		if d := Trees(before[name], tree); d.Changed() {
			out[name] = d
		}
	}
	return out
}

func compareSections(before, after *uci.Section) (SectionDiff, bool) {
	sd := SectionDiff{Status: StatusModified, Type: after.Type}
	if before.Type != after.Type {
		sd.TypeChanged = true
		sd.BeforeType = before.Type
	}

	options := make(map[string]OptionDiff)
	for key, value := range before.Options {
		if _, ok := after.Options[key]; !ok {
			options[key] = OptionDiff{Status: StatusRemoved, Before: valuePtr(value)}
		}
	}
	for key, value := range after.Options {
		previous, ok := before.Options[key]
		switch {
		case !ok:
			options[key] = OptionDiff{Status: StatusAdded, After: valuePtr(value)}
		case !previous.Equivalent(value):
			options[key] = OptionDiff{Status: StatusModified, Before: valuePtr(previous), After: valuePtr(value)}
		}
	}

	if len(options) > 0 {
		sd.Options = options
	}
	return sd, sd.TypeChanged || len(options) > 0
}

func wholeSections(tree *uci.Tree, status Status) map[string]SectionDiff {
	sections := make(map[string]SectionDiff, tree.Len())
	for _, section := range tree.Sections() {
		sections[section.ID()] = wholeSection(section, status)
	}
	return sections
}

func wholeSection(section *uci.Section, status Status) SectionDiff {
	sd := SectionDiff{Status: status, Type: section.Type}
	if len(section.Options) == 0 {
		return sd
	}
	sd.Options = make(map[string]OptionDiff, len(section.Options))
	for key, value := range section.Options {
		od := OptionDiff{Status: status}
		if status == StatusAdded {
			od.After = valuePtr(value)
		} else {
			od.Before = valuePtr(value)
		}
		sd.Options[key] = od
	}
	return sd
}

func valuePtr(v uci.Value) *uci.Value {
	c := v.Clone()
	return &c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
