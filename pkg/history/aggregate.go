package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/snapshot"
)

// LoadFunc loads one snapshot directory.
type LoadFunc func(dir string) (*snapshot.Snapshot, error)

// Aggregator computes Trends.
type Aggregator struct {
	logger *slog.Logger
	load   LoadFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for degraded comparisons.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLoader replaces snapshot.Load.
func WithLoader(load LoadFunc) Option {
	return func(a *Aggregator) {
		if load != nil {
			a.load = load
		}
	}
}

// New builds an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: slog.New(slog.DiscardHandler),
		load:   snapshot.Load,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "history")
	return a
}

// Device lists the snapshots under deviceDir and aggregates them.
func (a *Aggregator) Device(ctx context.Context, deviceDir string) (*Trend, error) {
	entries, err := snapshot.List(deviceDir)
	if err != nil {
		return nil, err
	}
	return a.Aggregate(ctx, entries)
}

// Aggregate diffs every adjacent pair of entries, which must be ordered
// newest first, and sums the results. A snapshot that fails to load turns
// the comparisons it takes part in into zero-change ChangeSets carrying the
// error. Only a cancelled context fails the call.
func (a *Aggregator) Aggregate(ctx context.Context, entries []snapshot.Entry) (*Trend, error) {
	trend := &Trend{Snapshots: len(entries), BusiestHour: -1}
	if len(entries) == 0 {
		return trend, nil
	}

	versions := make([]VersionedConfig, len(entries))
	loaded := make([]*snapshot.Snapshot, len(entries))
	failures := make([]error, len(entries))
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		versions[i] = VersionedConfig{VersionID: entry.Name, Path: entry.Path, Timestamp: entry.Time}
		snap, err := a.load(entry.Path)
		if err != nil {
			failures[i] = err
			continue
		}
		loaded[i] = snap
		versions[i].Checksum = snap.Checksum().String()
		if trend.Device == "" {
			trend.Device = snap.Metadata.Device
		}
	}

	trend.TimeRange = timeRange(entries)
	trend.SnapshotsPerDay = perDay(len(entries), trend.TimeRange)

	var stats diff.Statistics
	changed := 0
	for i := 0; i+1 < len(entries); i++ {
		target, base := i, i+1
		cs := ChangeSet{Base: versions[base], Target: versions[target]}

		switch {
		case failures[base] != nil:
			cs.Error = failures[base].Error()
		case failures[target] != nil:
			cs.Error = failures[target].Error()
		default:
			cs.Record = diff.Snapshots(loaded[base], loaded[target])
		}

		if cs.Error != "" {
			trend.Errors = append(trend.Errors, cs.Base.VersionID+" -> "+cs.Target.VersionID+": "+cs.Error)
			a.logger.Warn("comparison degraded",
				"base", cs.Base.Path,
				"target", cs.Target.Path,
				"error", cs.Error,
			)
		} else {
			for _, e := range cs.Record.Errors {
				trend.Errors = append(trend.Errors, cs.Base.VersionID+" -> "+cs.Target.VersionID+": "+e)
			}
			if len(cs.Record.Errors) > 0 {
				a.logger.Warn("comparison skipped unparsable files",
					"base", cs.Base.Path,
					"target", cs.Target.Path,
					"errors", len(cs.Record.Errors),
				)
			}
			stats = stats.Add(cs.Record.Statistics)
			trend.HourHistogram[cs.Target.Timestamp.UTC().Hour()] += cs.TotalChanges()
		}
		if cs.Changed() {
			changed++
		}
		trend.ChangeSets = append(trend.ChangeSets, cs)
	}

	trend.Comparisons = len(trend.ChangeSets)
	trend.PackageStats = stats.Packages
	trend.SectionStats = stats.Sections
	trend.OptionStats = stats.Options
	trend.TotalChanges = stats.TotalChanges

	if trend.Comparisons > 0 {
		trend.ChangeFrequency = float64(changed) / float64(trend.Comparisons)
		trend.MeanChanges = float64(stats.TotalChanges) / float64(trend.Comparisons)
	}
	for hour, count := range trend.HourHistogram {
		if count > 0 && (trend.BusiestHour < 0 || count > trend.HourHistogram[trend.BusiestHour]) {
			trend.BusiestHour = hour
		}
	}
	return trend, nil
}

func timeRange(entries []snapshot.Entry) TimeRange {
	r := TimeRange{Start: entries[0].Time, End: entries[0].Time}
	for _, entry := range entries[1:] {
		if entry.Time.Before(r.Start) {
			r.Start = entry.Time
		}
		if entry.Time.After(r.End) {
			r.End = entry.Time
		}
	}
	return r
}

func perDay(count int, r TimeRange) float64 {
	days := r.End.Sub(r.Start).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(count) / days
}

// Since keeps the entries taken at or after t.
func Since(entries []snapshot.Entry, t time.Time) []snapshot.Entry {
	var out []snapshot.Entry
	for _, entry := range entries {
		if !entry.Time.Before(t) {
			out = append(out, entry)
		}
	}
	return out
}
