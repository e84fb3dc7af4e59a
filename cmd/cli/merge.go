package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/report"
)

func newMergeCmd(a *app) *cobra.Command {
	var failOnConflict bool
	cmd := &cobra.Command{
		Use:   "merge PACKAGE SOURCE TARGET",
		Short: "Merge one UCI file into another",
		Long: `Merge the UCI file SOURCE into TARGET as package PACKAGE.

Existing values win on conflict and every conflict is reported. TARGET is
rewritten unless --dry-run is set; a missing TARGET is created.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, source, target := args[0], args[1], args[2]

			engine, err := a.engine()
			if err != nil {
				return err
			}
			outcome, err := engine.MergeConfig(pkg, source, target)
			if err != nil {
				_ = a.writeSummary(engine.Summary())
				return err
			}
			if err := engine.SaveConfig(outcome.Tree, target); err != nil {
				return err
			}
			return a.finish(engine.Summary(), failOnConflict)
		},
	}
	addFailOnConflict(cmd, &failOnConflict)
	return cmd
}

func newMergeDirCmd(a *app) *cobra.Command {
	var failOnConflict bool
	cmd := &cobra.Command{
		Use:   "merge-dir SOURCE_DIR TARGET_DIR",
		Short: "Merge every UCI file of a directory",
		Long: `Merge each file of SOURCE_DIR into the file of the same name in
TARGET_DIR, in parallel. File names are package names and hidden files are
skipped. A file that fails does not stop the others.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceDir, targetDir := args[0], args[1]

			engine, err := a.engine()
			if err != nil {
				return err
			}
			result, err := engine.MergeDirectory(cmd.Context(), sourceDir, targetDir)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(result.Files))
			for name, file := range result.Files {
				if file.Success {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			for _, name := range names {
				if err := engine.SaveConfig(result.Files[name].Outcome.Tree, filepath.Join(targetDir, name)); err != nil {
					return err
				}
			}

			if failed := result.Failed(); len(failed) > 0 {
				if err := a.writeSummary(engine.Summary()); err != nil {
					return err
				}
				for _, name := range failed {
					a.logger.Error("merge failed", "file", name, "error", result.Files[name].Error)
				}
				return fmt.Errorf("%d file(s) failed to merge: %s", len(failed), strings.Join(failed, ", "))
			}
			return a.finish(engine.Summary(), failOnConflict)
		},
	}
	addFailOnConflict(cmd, &failOnConflict)
	return cmd
}

func addFailOnConflict(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "fail-on-conflict", false, "exit non-zero when any conflict was recorded (files are still written)")
}

func (a *app) writeSummary(summary merge.Summary) error {
	return report.Merge(a.stdout, summary, a.reportFormat(), a.reportOptions("Merge summary"))
}

// finish prints the summary and, when strict, turns recorded conflicts into
// the command's error.
func (a *app) finish(summary merge.Summary, strict bool) error {
	if err := a.writeSummary(summary); err != nil {
		return err
	}
	if strict {
		return summary.ConflictErr()
	}
	return nil
}
