package merge

import (
	"errors"
	"fmt"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// Action classifies a Change.
type Action string

const (
	ActionAddSection    Action = "add_section"
	ActionAddOption     Action = "add_option"
	ActionMergeList     Action = "merge_list"
	ActionReplaceOption Action = "replace_option"
	ActionMergeConfig   Action = "merge_config"
	ActionSaveConfig    Action = "save_config"
)

// Change is one entry of the Change Log.
type Change struct {
	Action  Action `json:"action"`
	Config  string `json:"config"`
	Section string `json:"section,omitempty"`
	Option  string `json:"option,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ConflictKind tells what disagreed.
type ConflictKind string

const (
	// ConflictValue is two scalars with different text.
	ConflictValue ConflictKind = "value"
	// ConflictShape is a scalar on one side and a list on the other.
	ConflictShape ConflictKind = "shape"
	// ConflictSectionType is a section present in both trees with different types.
	ConflictSectionType ConflictKind = "section_type"
)

// Conflict is one entry of the Conflict Log. Kept reports whether the
// existing value survived.
type Conflict struct {
	Kind     ConflictKind `json:"kind"`
	Config   string       `json:"config"`
	Section  string       `json:"section"`
	Option   string       `json:"option,omitempty"`
	Existing uci.Value    `json:"existing"`
	New      uci.Value    `json:"new"`
	Kept     bool         `json:"kept_existing"`
}

// Err describes the conflict as a KindConflict error. The engine never
// fails a merge on a conflict; this is for callers that want to.
func (c Conflict) Err() error {
	where := c.Config + "." + c.Section
	if c.Option != "" {
		where += "." + c.Option
	}
	kept, dropped := c.Existing, c.New
	if !c.Kept {
		kept, dropped = c.New, c.Existing
	}
	return nxerrors.Errorf(nxerrors.KindConflict, "%s %s: kept %s, dropped %s", c.Kind, where, kept, dropped)
}

// Rejection records an incoming value dropped by the network guard.
type Rejection struct {
	Config   string    `json:"config"`
	Section  string    `json:"section"`
	Option   string    `json:"option"`
	Rejected uci.Value `json:"rejected"`
	Reason   string    `json:"reason"`
}

// Outcome is the result of one merge: the merged tree and the log entries
// that merge produced. Tree is nil when the merge failed.
type Outcome struct {
	Package    string      `json:"package"`
	Tree       *uci.Tree   `json:"-"`
	Changes    []Change    `json:"changes"`
	Conflicts  []Conflict  `json:"conflicts"`
	Rejections []Rejection `json:"rejections,omitempty"`
	DryRun     bool        `json:"dry_run"`
}

// Summary is a snapshot of everything an Engine has logged since it was
// created or last Reset.
type Summary struct {
	Changes    []Change    `json:"changes"`
	Conflicts  []Conflict  `json:"conflicts"`
	Rejections []Rejection `json:"rejections"`
	DryRun     bool        `json:"dry_run"`
}

// ConflictErr joins the Err of every logged conflict, or returns nil when
// there are none.
func (s Summary) ConflictErr() error {
	if len(s.Conflicts) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Conflicts))
	for _, c := range s.Conflicts {
		errs = append(errs, c.Err())
	}
	return fmt.Errorf("%d conflict(s): %w", len(s.Conflicts), errors.Join(errs...))
}
