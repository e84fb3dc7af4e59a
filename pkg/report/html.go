package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/history"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.75rem; text-align: left; }
pre { overflow-x: auto; padding: 0.75rem; }
</style>
</head>
<body>
<h1>%s</h1>
`

// fileSection is a raw file diff shown below the markdown body.
type fileSection struct {
	name    string
	unified string
}

func fileSections(rec *diff.Record) []fileSection {
	var sections []fileSection
	for _, name := range rec.FileNames() {
		if fd := rec.FileDiffs[name]; fd.Unified != "" {
			sections = append(sections, fileSection{name: name, unified: fd.Unified})
		}
	}
	return sections
}

func writeHTML(w io.Writer, title, body string, files []fileSection) error {
	var page bytes.Buffer
	escaped := html.EscapeString(title)
	fmt.Fprintf(&page, pageHead, escaped, escaped)

	if err := getMarkdown().Convert([]byte(body), &page); err != nil {
		return nxerrors.New(nxerrors.KindRender, fmt.Errorf("render markdown: %w", err))
	}

	if len(files) > 0 {
		page.WriteString("<h2>File diffs</h2>\n")
		for _, f := range files {
			fmt.Fprintf(&page, "<h3>%s</h3>\n", html.EscapeString(f.name))
			if err := highlightDiff(&page, f.unified); err != nil {
				return err
			}
		}
	}
	page.WriteString("</body>\n</html>\n")

	if _, err := page.WriteTo(w); err != nil {
		return nxerrors.New(nxerrors.KindIO, err)
	}
	return nil
}

func highlightDiff(w io.Writer, unified string) error {
	lexer := lexers.Get("diff")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, unified)
	if err != nil {
		return nxerrors.New(nxerrors.KindRender, fmt.Errorf("tokenise diff: %w", err))
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(w, style, iterator); err != nil {
		return nxerrors.New(nxerrors.KindRender, fmt.Errorf("highlight diff: %w", err))
	}
	return nil
}

// code formats text as a markdown code span that survives backticks.
func code(text string) string {
	if text == "" {
		return "` `"
	}
	fence := "`"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
		return fence + " " + text + " " + fence
	}
	return fence + text + fence
}

// cell escapes a table cell.
func cell(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "|", `\|`), "\n", " ")
}

func statsTable(b *strings.Builder, packages, sections, options diff.Counts) {
	b.WriteString("| | added | removed | modified |\n|---|---:|---:|---:|\n")
	for _, row := range []struct {
		label  string
		counts diff.Counts
	}{{"packages", packages}, {"sections", sections}, {"options", options}} {
		fmt.Fprintf(b, "| %s | %d | %d | %d |\n", row.label, row.counts.Added, row.counts.Removed, row.counts.Modified)
	}
	b.WriteString("\n")
}

func recordMarkdown(rec *diff.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparing %s (%s) with %s (%s).\n\n",
		code(rec.Summary.Before), formatTime(rec.Summary.BeforeTime),
		code(rec.Summary.After), formatTime(rec.Summary.AfterTime))

	if !rec.Summary.Changed {
		b.WriteString("**No changes.**\n\n")
	}

	s := rec.Statistics
	b.WriteString("## Statistics\n\n")
	statsTable(&b, s.Packages, s.Sections, s.Options)
	fmt.Fprintf(&b, "Total changes: **%d**\n\n", s.TotalChanges)

	if len(rec.Packages) > 0 {
		b.WriteString("## Packages\n\n")
		for _, name := range rec.PackageNames() {
			pd := rec.Packages[name]
			fmt.Fprintf(&b, "### %s (%s)\n\n", code(name), pd.Status)
			b.WriteString("| section | type | option | status | before | after |\n|---|---|---|---|---|---|\n")
			for _, id := range pd.SectionIDs() {
				sd := pd.Sections[id]
				typ := sd.Type
				if sd.TypeChanged {
					typ = sd.BeforeType + " → " + sd.Type
				}
				fmt.Fprintf(&b, "| %s | %s | | %s | | |\n", cell(code(id)), cell(typ), sd.Status)
				if pd.Status != diff.StatusModified {
					continue
				}
				for _, key := range sd.OptionNames() {
					od := sd.Options[key]
					before, after := "", ""
					if od.Before != nil {
						before = code(od.Before.String())
					}
					if od.After != nil {
						after = code(od.After.String())
					}
					fmt.Fprintf(&b, "| | | %s | %s | %s | %s |\n", cell(code(key)), od.Status, cell(before), cell(after))
				}
			}
			b.WriteString("\n")
		}
	}

	if len(rec.SystemChanges) > 0 {
		b.WriteString("## System changes\n\n| key | status | before | after |\n|---|---|---|---|\n")
		for _, key := range rec.SystemKeys() {
			bd := rec.SystemChanges[key]
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(code(key)), bd.Status, cell(code(bd.Before)), cell(code(bd.After)))
		}
		b.WriteString("\n")
	}

	writeErrorsMarkdown(&b, rec.Errors)
	return b.String()
}

func writeErrorsMarkdown(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("## Errors\n\n")
	for _, e := range errs {
		fmt.Fprintf(b, "- %s\n", code(e))
	}
	b.WriteString("\n")
}

func trendMarkdown(trend *history.Trend) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d snapshots from %s to %s, %d comparisons.\n\n",
		trend.Snapshots, formatTime(trend.TimeRange.Start), formatTime(trend.TimeRange.End), trend.Comparisons)

	b.WriteString("## Summary\n\n")
	statsTable(&b, trend.PackageStats, trend.SectionStats, trend.OptionStats)
	b.WriteString("| metric | value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| total changes | %d |\n", trend.TotalChanges)
	fmt.Fprintf(&b, "| snapshots per day | %.2f |\n", trend.SnapshotsPerDay)
	fmt.Fprintf(&b, "| change frequency | %.0f%% |\n", trend.ChangeFrequency*100)
	fmt.Fprintf(&b, "| mean changes | %.2f |\n", trend.MeanChanges)
	if trend.BusiestHour >= 0 {
		fmt.Fprintf(&b, "| busiest hour (UTC) | %02d:00 |\n", trend.BusiestHour)
	}
	b.WriteString("\n")

	if trend.TotalChanges > 0 {
		b.WriteString("## Changes by hour (UTC)\n\n| hour | changes |\n|---|---:|\n")
		for hour, count := range trend.HourHistogram {
			if count > 0 {
				fmt.Fprintf(&b, "| %02d:00 | %d |\n", hour, count)
			}
		}
		b.WriteString("\n")
	}

	if len(trend.ChangeSets) > 0 {
		b.WriteString("## Comparisons\n\n| base | target | changes | note |\n|---|---|---:|---|\n")
		for _, cs := range trend.ChangeSets {
			note := ""
			if cs.Error != "" {
				note = code(cs.Error)
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n",
				cell(code(cs.Base.VersionID)), cell(code(cs.Target.VersionID)), cs.TotalChanges(), cell(note))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func mergeMarkdown(summary merge.Summary) string {
	var b strings.Builder
	if summary.DryRun {
		b.WriteString("_Dry run: nothing was written._\n\n")
	}

	fmt.Fprintf(&b, "## Changes (%d)\n\n", len(summary.Changes))
	if len(summary.Changes) > 0 {
		b.WriteString("| action | target | source |\n|---|---|---|\n")
		for _, c := range summary.Changes {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Action, cell(code(path(c.Config, c.Section, c.Option))), cell(c.Source))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Conflicts (%d)\n\n", len(summary.Conflicts))
	if len(summary.Conflicts) > 0 {
		b.WriteString("| kind | target | existing | incoming | kept existing |\n|---|---|---|---|---|\n")
		for _, c := range summary.Conflicts {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %t |\n", c.Kind, cell(code(path(c.Config, c.Section, c.Option))),
				cell(code(c.Existing.String())), cell(code(c.New.String())), c.Kept)
		}
		b.WriteString("\n")
	}

	if len(summary.Rejections) > 0 {
		fmt.Fprintf(&b, "## Rejected values (%d)\n\n| target | value | reason |\n|---|---|---|\n", len(summary.Rejections))
		for _, r := range summary.Rejections {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(code(path(r.Config, r.Section, r.Option))), cell(code(r.Rejected.String())), cell(r.Reason))
		}
		b.WriteString("\n")
	}
	return b.String()
}
