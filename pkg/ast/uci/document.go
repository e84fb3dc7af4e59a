package uci

import (
	"fmt"
	"sort"

	commonv1 "github.com/honeybbq/netjson/gen/go/netjson/common/v1"
)

// Document is a set of UCI packages plus auxiliary files, the unit handled by
// the renderer and parser.
type Document struct {
	Packages []*Tree
	Files    []*commonv1.IncludedFile
}

// Section is a typed group of options. Named sections are identified by Name;
// anonymous sections by the synthetic key (Type, Ordinal) assigned when the
// section entered its tree.
type Section struct {
	Type    string
	Name    string
	Ordinal int
	Options map[string]Value
}

// NewSection creates a Section with an initialized option map.
func NewSection(typ, name string) *Section {
	return &Section{
		Type:    typ,
		Name:    name,
		Options: make(map[string]Value),
	}
}

// Anonymous reports whether the section has no user-chosen name.
func (s *Section) Anonymous() bool {
	return s.Name == ""
}

// ID returns the section identifier: its name, or @type[ordinal] when anonymous.
func (s *Section) ID() string {
	if s.Name != "" {
		return s.Name
	}
	return AnonymousID(s.Type, s.Ordinal)
}

// AnonymousID formats the positional identifier of an anonymous section.
func AnonymousID(typ string, ordinal int) string {
	return fmt.Sprintf("@%s[%d]", typ, ordinal)
}

// Set stores an option value.
func (s *Section) Set(key string, value Value) {
	if s.Options == nil {
		s.Options = make(map[string]Value)
	}
	s.Options[key] = value
}

// Get looks an option up.
func (s *Section) Get(key string) (Value, bool) {
	value, ok := s.Options[key]
	return value, ok
}

// Keys returns the option names in sorted order.
func (s *Section) Keys() []string {
	keys := make([]string, 0, len(s.Options))
	for key := range s.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies the section.
func (s *Section) Clone() *Section {
	clone := &Section{
		Type:    s.Type,
		Name:    s.Name,
		Ordinal: s.Ordinal,
		Options: make(map[string]Value, len(s.Options)),
	}
	for key, value := range s.Options {
		clone.Options[key] = value.Clone()
	}
	return clone
}

// Tree is the Configuration Tree of exactly one UCI package: sections keyed
// by identifier, kept in insertion order.
type Tree struct {
	Package string

	order    []string
	sections map[string]*Section
	ordinals map[string]int
}

// NewTree creates an empty tree for the named package.
func NewTree(pkg string) *Tree {
	return &Tree{
		Package:  pkg,
		sections: make(map[string]*Section),
		ordinals: make(map[string]int),
	}
}

// AddNamed returns the named section, creating it when absent. An existing
// section with the same name is reopened and takes the new type, matching
// how uci treats a repeated `config` block.
func (t *Tree) AddNamed(typ, name string) *Section {
	t.init()
	if existing, ok := t.sections[name]; ok {
		existing.Type = typ
		return existing
	}
	section := NewSection(typ, name)
	section.Ordinal = t.ordinals[typ]
	t.ordinals[typ]++
	t.order = append(t.order, name)
	t.sections[name] = section
	return section
}

// AddAnonymous appends a new anonymous section with the next ordinal of its type.
func (t *Tree) AddAnonymous(typ string) *Section {
	t.init()
	section := NewSection(typ, "")
	section.Ordinal = t.ordinals[typ]
	t.ordinals[typ]++
	id := section.ID()
	t.order = append(t.order, id)
	t.sections[id] = section
	return section
}

// Insert stores section under its own identifier, replacing any section
// already there. The ordinal carried by an anonymous section is kept.
func (t *Tree) Insert(section *Section) {
	t.init()
	id := section.ID()
	if _, ok := t.sections[id]; !ok {
		t.order = append(t.order, id)
	}
	t.sections[id] = section
	if next := section.Ordinal + 1; next > t.ordinals[section.Type] {
		t.ordinals[section.Type] = next
	}
}

// Section looks a section up by identifier.
func (t *Tree) Section(id string) (*Section, bool) {
	if t == nil {
		return nil, false
	}
	section, ok := t.sections[id]
	return section, ok
}

// IDs returns the section identifiers in insertion order.
func (t *Tree) IDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

// Sections returns the sections in insertion order.
func (t *Tree) Sections() []*Section {
	if t == nil {
		return nil
	}
	sections := make([]*Section, 0, len(t.order))
	for _, id := range t.order {
		sections = append(sections, t.sections[id])
	}
	return sections
}

// Len is the number of sections.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	clone := NewTree(t.Package)
	for _, id := range t.order {
		clone.order = append(clone.order, id)
		clone.sections[id] = t.sections[id].Clone()
	}
	for typ, next := range t.ordinals {
		clone.ordinals[typ] = next
	}
	return clone
}

func (t *Tree) init() {
	if t.sections == nil {
		t.sections = make(map[string]*Section)
	}
	if t.ordinals == nil {
		t.ordinals = make(map[string]int)
	}
}
