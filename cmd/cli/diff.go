package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/history"
	"github.com/honeybbq/uciconfig/pkg/report"
	"github.com/honeybbq/uciconfig/pkg/snapshot"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff BEFORE_SNAPSHOT AFTER_SNAPSHOT",
		Short: "Compare two device snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := diff.Dirs(args[0], args[1])
			if err != nil {
				return err
			}
			for _, e := range rec.Errors {
				a.logger.Warn("snapshot incomplete", "error", e)
			}
			return report.Record(a.stdout, rec, a.reportFormat(), a.reportOptions(""))
		},
	}
}

func newDiffConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff-config PACKAGE BEFORE AFTER",
		Short: "Compare two UCI files of one package",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := diff.Configs(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return report.Record(a.stdout, rec, a.reportFormat(), a.reportOptions(""))
		},
	}
}

func newTrendCmd(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "trend DEVICE_DIR",
		Short: "Summarise how a device's configuration changed over time",
		Long: `Diff every pair of consecutive snapshots under DEVICE_DIR and report
change counts, frequency and the busiest hour of the day.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := snapshot.List(args[0])
			if err != nil {
				return err
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				entries = history.Since(entries, t)
			}

			trend, err := history.New(history.WithLogger(a.logger)).Aggregate(cmd.Context(), entries)
			if err != nil {
				return err
			}
			return report.Trend(a.stdout, trend, a.reportFormat(), a.reportOptions(""))
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only consider snapshots taken at or after this RFC 3339 time")
	return cmd
}
