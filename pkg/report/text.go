package report

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/history"
	"github.com/honeybbq/uciconfig/pkg/merge"
)

type palette struct {
	added    *color.Color
	removed  *color.Color
	modified *color.Color
	heading  *color.Color
	faint    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		added:    color.New(color.FgGreen),
		removed:  color.New(color.FgRed),
		modified: color.New(color.FgYellow),
		heading:  color.New(color.Bold),
		faint:    color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.added, p.removed, p.modified, p.heading, p.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(status diff.Status) string {
	switch status {
	case diff.StatusAdded:
		return p.added.Sprint("+")
	case diff.StatusRemoved:
		return p.removed.Sprint("-")
	default:
		return p.modified.Sprint("~")
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCounts(c diff.Counts) string {
	return fmt.Sprintf("+%d -%d ~%d", c.Added, c.Removed, c.Modified)
}

func recordText(w io.Writer, rec *diff.Record, opts Options) error {
	p := newPalette(opts.Color)
	out := bufio.NewWriter(w)

	title := "Diff"
	if rec.Summary.Device != "" {
		title += " " + rec.Summary.Device
	}
	fmt.Fprintf(out, "%s: %s -> %s\n", p.heading.Sprint(title), rec.Summary.Before, rec.Summary.After)
	fmt.Fprintf(out, "  before: %s\n  after:  %s\n", formatTime(rec.Summary.BeforeTime), formatTime(rec.Summary.AfterTime))

	if !rec.Summary.Changed {
		fmt.Fprintln(out, "No changes.")
	} else {
		s := rec.Statistics
		fmt.Fprintf(out, "Statistics: packages %s, sections %s, options %s, total %d\n",
			formatCounts(s.Packages), formatCounts(s.Sections), formatCounts(s.Options), s.TotalChanges)
	}

	if len(rec.Packages) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.heading.Sprint("Packages:"))
		for _, name := range rec.PackageNames() {
			pd := rec.Packages[name]
			fmt.Fprintf(out, "  %s %s\n", p.status(pd.Status), name)
			for _, id := range pd.SectionIDs() {
				sd := pd.Sections[id]
				typ := sd.Type
				if sd.TypeChanged {
					typ = sd.BeforeType + " -> " + sd.Type
				}
				fmt.Fprintf(out, "      %s %s %s\n", p.status(sd.Status), id, p.faint.Sprintf("(%s)", typ))
				if pd.Status != diff.StatusModified {
					continue
				}
				for _, key := range sd.OptionNames() {
					fmt.Fprintf(out, "          %s %s\n", p.status(sd.Options[key].Status), optionLine(key, sd.Options[key]))
				}
			}
		}
	}

	if len(rec.FileDiffs) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.heading.Sprint("Files:"))
		for _, name := range rec.FileNames() {
			fmt.Fprintf(out, "  %s %s\n", p.status(rec.FileDiffs[name].Status), name)
		}
	}

	if len(rec.SystemChanges) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.heading.Sprint("System changes:"))
		for _, key := range rec.SystemKeys() {
			bd := rec.SystemChanges[key]
			switch bd.Status {
			case diff.StatusAdded:
				fmt.Fprintf(out, "  %s %s: %s\n", p.status(bd.Status), key, bd.After)
			case diff.StatusRemoved:
				fmt.Fprintf(out, "  %s %s: %s\n", p.status(bd.Status), key, bd.Before)
			default:
				fmt.Fprintf(out, "  %s %s: %s -> %s\n", p.status(bd.Status), key, bd.Before, bd.After)
			}
		}
	}

	writeErrors(out, p, rec.Errors)
	return out.Flush()
}

func optionLine(key string, od diff.OptionDiff) string {
	switch od.Status {
	case diff.StatusAdded:
		return fmt.Sprintf("%s: %s", key, od.After)
	case diff.StatusRemoved:
		return fmt.Sprintf("%s: %s", key, od.Before)
	default:
		return fmt.Sprintf("%s: %s -> %s", key, od.Before, od.After)
	}
}

func writeErrors(out io.Writer, p palette, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", p.removed.Sprint("Errors:"))
	for _, e := range errs {
		fmt.Fprintf(out, "  %s\n", e)
	}
}

func trendText(w io.Writer, trend *history.Trend, opts Options) error {
	p := newPalette(opts.Color)
	out := bufio.NewWriter(w)

	title := "History"
	if trend.Device != "" {
		title += " " + trend.Device
	}
	fmt.Fprintf(out, "%s: %d snapshots, %d comparisons\n", p.heading.Sprint(title), trend.Snapshots, trend.Comparisons)
	if trend.Snapshots == 0 {
		fmt.Fprintln(out, "No snapshots.")
		return out.Flush()
	}

	fmt.Fprintf(out, "  span:            %s -> %s\n", formatTime(trend.TimeRange.Start), formatTime(trend.TimeRange.End))
	fmt.Fprintf(out, "  snapshots/day:   %.2f\n", trend.SnapshotsPerDay)
	fmt.Fprintf(out, "  change rate:     %.0f%%\n", trend.ChangeFrequency*100)
	fmt.Fprintf(out, "  mean changes:    %.2f\n", trend.MeanChanges)
	if trend.BusiestHour >= 0 {
		fmt.Fprintf(out, "  busiest hour:    %02d:00 UTC (%d changes)\n", trend.BusiestHour, trend.HourHistogram[trend.BusiestHour])
	}
	fmt.Fprintf(out, "  packages %s, sections %s, options %s, total %d\n",
		formatCounts(trend.PackageStats), formatCounts(trend.SectionStats), formatCounts(trend.OptionStats), trend.TotalChanges)

	if len(trend.ChangeSets) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.heading.Sprint("Comparisons:"))
		for _, cs := range trend.ChangeSets {
			label := cs.Base.VersionID + " -> " + cs.Target.VersionID
			switch {
			case cs.Error != "":
				fmt.Fprintf(out, "  %s %s\n", label, p.removed.Sprint("error: "+cs.Error))
			case cs.Changed():
				fmt.Fprintf(out, "  %s %s\n", label, p.modified.Sprintf("%d changes", cs.TotalChanges()))
			default:
				fmt.Fprintf(out, "  %s %s\n", label, p.faint.Sprint("no changes"))
			}
		}
	}
	return out.Flush()
}

func mergeText(w io.Writer, summary merge.Summary, opts Options) error {
	p := newPalette(opts.Color)
	out := bufio.NewWriter(w)

	if summary.DryRun {
		fmt.Fprintln(out, p.faint.Sprint("dry run: nothing was written"))
	}

	fmt.Fprintf(out, "%s\n", p.heading.Sprintf("Changes (%d):", len(summary.Changes)))
	for _, c := range summary.Changes {
		fmt.Fprintf(out, "  %s %s\n", p.added.Sprint(string(c.Action)), changeTarget(c))
	}

	fmt.Fprintf(out, "%s\n", p.heading.Sprintf("Conflicts (%d):", len(summary.Conflicts)))
	for _, c := range summary.Conflicts {
		verdict := "kept existing"
		if !c.Kept {
			verdict = "applied incoming"
		}
		fmt.Fprintf(out, "  %s %s: existing %s, incoming %s (%s)\n",
			p.modified.Sprint(string(c.Kind)), path(c.Config, c.Section, c.Option), c.Existing, c.New, verdict)
	}

	if len(summary.Rejections) > 0 {
		fmt.Fprintf(out, "%s\n", p.heading.Sprintf("Rejected (%d):", len(summary.Rejections)))
		for _, r := range summary.Rejections {
			fmt.Fprintf(out, "  %s %s: %s\n", p.removed.Sprint("rejected"), path(r.Config, r.Section, r.Option), r.Reason)
		}
	}
	return out.Flush()
}

func changeTarget(c merge.Change) string {
	target := path(c.Config, c.Section, c.Option)
	switch {
	case c.Source == "":
	case c.Action == merge.ActionSaveConfig:
		target += " to " + c.Source
	default:
		target += " from " + c.Source
	}
	return target
}

func path(parts ...string) string {
	out := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += part
	}
	return out
}
