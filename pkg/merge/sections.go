package merge

import (
	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/dedupe"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// merge is the pure part of MergeSections: it never touches the engine log.
func (e *Engine) merge(existing, incoming *uci.Tree, pkg string) (*Outcome, error) {
	out := &Outcome{Package: pkg, DryRun: e.opts.DryRun}

	var merged *uci.Tree
	if existing != nil {
		merged = existing.Clone()
	} else {
		merged = uci.NewTree(pkg)
	}
	merged.Package = pkg

	var guard *networkGuard
	if e.opts.PreserveNetwork && pkg == "network" {
		guard = newNetworkGuard(merged, incoming, e.opts.KnownDevices)
	}

	for _, section := range incoming.Sections() {
		id := section.ID()
		current, ok := merged.Section(id)
		if !ok {
			merged.Insert(section.Clone())
			e.logChange(out, Change{Action: ActionAddSection, Config: pkg, Section: id})
			continue
		}

		if current.Type != section.Type {
			e.logConflict(out, Conflict{
				Kind:     ConflictSectionType,
				Config:   pkg,
				Section:  id,
				Existing: uci.Scalar(current.Type),
				New:      uci.Scalar(section.Type),
				Kept:     true,
			})
		}

		for _, key := range section.Keys() {
			if err := e.mergeOption(out, guard, current, key, section.Options[key]); err != nil {
				out.Tree = nil
				return out, err
			}
		}
	}

	out.Tree = merged
	return out, nil
}

func (e *Engine) mergeOption(out *Outcome, guard *networkGuard, current *uci.Section, key string, incoming uci.Value) error {
	id := current.ID()
	existing, ok := current.Get(key)
	if !ok {
		if rejected, err := e.guard(out, guard, current, key, incoming); rejected || err != nil {
			return err
		}
		current.Set(key, incoming.Clone())
		e.logChange(out, Change{Action: ActionAddOption, Config: out.Package, Section: id, Option: key})
		return nil
	}

	switch {
	case existing.IsList() && incoming.IsList():
		var items []string
		if e.opts.DedupeLists {
			items = dedupe.MergeLists(existing.Items(), incoming.Items(), e.opts.Strategy)
		} else {
			items = append(existing.Items(), incoming.Items()...)
		}
		merged := uci.List(items...)
		if !merged.Equal(existing) {
			current.Set(key, merged)
			e.logChange(out, Change{Action: ActionMergeList, Config: out.Package, Section: id, Option: key})
		}
		return nil

	case !existing.IsList() && !incoming.IsList() && existing.Text() == incoming.Text():
		return nil
	}

	kind := ConflictValue
	if existing.IsList() != incoming.IsList() {
		kind = ConflictShape
	}
	e.logConflict(out, Conflict{
		Kind:     kind,
		Config:   out.Package,
		Section:  id,
		Option:   key,
		Existing: existing.Clone(),
		New:      incoming.Clone(),
		Kept:     e.opts.PreserveExisting,
	})
	if e.opts.PreserveExisting {
		return nil
	}

	if rejected, err := e.guard(out, guard, current, key, incoming); rejected || err != nil {
		out.Conflicts[len(out.Conflicts)-1].Kept = true
		return err
	}
	current.Set(key, incoming.Clone())
	e.logChange(out, Change{Action: ActionReplaceOption, Config: out.Package, Section: id, Option: key})
	return nil
}

// guard asks the network guard about a value about to land in an existing
// section. It reports whether the value was rejected, and under
// NetworkPolicyFail turns the rejection into an error.
func (e *Engine) guard(out *Outcome, guard *networkGuard, section *uci.Section, key string, value uci.Value) (bool, error) {
	if guard == nil {
		return false, nil
	}
	reason := guard.check(section, key, value)
	if reason == "" {
		return false, nil
	}

	rejection := Rejection{
		Config:   out.Package,
		Section:  section.ID(),
		Option:   key,
		Rejected: value.Clone(),
		Reason:   reason,
	}
	out.Rejections = append(out.Rejections, rejection)
	e.logger.Warn("rejected disconnecting value",
		"package", out.Package,
		"section", rejection.Section,
		"option", key,
		"value", value.String(),
		"reason", reason,
	)

	if e.opts.NetworkPolicy == NetworkPolicyFail {
		return true, nxerrors.Errorf(nxerrors.KindNetworkSafety, "%s.%s.%s: %s", out.Package, rejection.Section, key, reason)
	}
	return true, nil
}

func (e *Engine) logChange(out *Outcome, change Change) {
	out.Changes = append(out.Changes, change)
	e.logger.Debug("change",
		"action", string(change.Action),
		"package", change.Config,
		"section", change.Section,
		"option", change.Option,
	)
}

func (e *Engine) logConflict(out *Outcome, conflict Conflict) {
	out.Conflicts = append(out.Conflicts, conflict)
	e.logger.Warn("conflict",
		"kind", string(conflict.Kind),
		"package", conflict.Config,
		"section", conflict.Section,
		"option", conflict.Option,
		"existing", conflict.Existing.String(),
		"new", conflict.New.String(),
		"kept_existing", conflict.Kept,
	)
}
