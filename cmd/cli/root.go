package main

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/honeybbq/uciconfig/pkg/config"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/report"
)

// app carries what every subcommand needs once flags and the config file
// have been resolved.
type app struct {
	configPath string
	format     string
	noColor    bool
	dryRun     bool

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "uciconfig",
		Short: "Merge, diff and track OpenWrt UCI configuration",
		Long: `uciconfig merges UCI configuration fragments into live configuration
without clobbering existing values, diffs UCI files and device snapshots,
and summarises how a device's configuration changed over time.

Settings are read from the YAML file named by --config or $UCICONFIG_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to the YAML config file")
	flags.StringVarP(&a.format, "format", "f", "", "report format: text, json, html or cbor")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored text output")
	flags.BoolVarP(&a.dryRun, "dry-run", "n", false, "merge without writing any file")

	root.AddCommand(
		newMergeCmd(a),
		newMergeDirCmd(a),
		newDiffCmd(a),
		newDiffConfigCmd(a),
		newTrendCmd(a),
		newNetJSONCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		if _, err := report.ParseFormat(a.format); err != nil {
			return err
		}
		a.cfg.Report.Format = a.format
	}
	if flags.Changed("dry-run") {
		a.cfg.Merge.DryRun = a.dryRun
	}
	if a.noColor {
		a.cfg.Report.Color = false
	}
	if color.NoColor {
		a.cfg.Report.Color = false
	}

	a.logger = a.cfg.Logger(a.stderr)
	return nil
}

func (a *app) engine() (*merge.Engine, error) {
	return merge.New(a.cfg.MergeOptions(a.logger))
}

func (a *app) reportFormat() report.Format {
	format, _ := report.ParseFormat(a.cfg.Report.Format)
	return format
}

func (a *app) reportOptions(title string) report.Options {
	return report.Options{Color: a.cfg.Report.Color, Title: title}
}
