// Package history aggregates diffs over a device's snapshot history.
package history

import (
	"time"

	"github.com/honeybbq/uciconfig/pkg/diff"
)

// VersionedConfig identifies one snapshot of the history.
type VersionedConfig struct {
	VersionID string    `json:"version_id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeSet is the comparison of two adjacent snapshots. When either side
// could not be loaded Record is nil and Error says why; the comparison then
// counts as zero changes.
type ChangeSet struct {
	Base   VersionedConfig `json:"base"`
	Target VersionedConfig `json:"target"`
	Record *diff.Record    `json:"record,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TotalChanges returns the record's total, or zero for a failed comparison.
func (c ChangeSet) TotalChanges() int {
	if c.Record == nil {
		return 0
	}
	return c.Record.Statistics.TotalChanges
}

// Changed reports whether the comparison found anything.
func (c ChangeSet) Changed() bool {
	return c.Record != nil && c.Record.Summary.Changed
}

// TimeRange spans the oldest and newest snapshot.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Trend is the aggregate over a history.
type Trend struct {
	Device       string      `json:"device,omitempty"`
	Snapshots    int         `json:"snapshots"`
	Comparisons  int         `json:"comparisons"`
	TimeRange    TimeRange   `json:"time_range"`
	PackageStats diff.Counts `json:"package_stats"`
	SectionStats diff.Counts `json:"section_stats"`
	OptionStats  diff.Counts `json:"option_stats"`
	TotalChanges int         `json:"total_changes"`

	// SnapshotsPerDay is the snapshot count over the observed span in days.
	// Spans under one day count as one day.
	SnapshotsPerDay float64 `json:"snapshots_per_day"`
	// ChangeFrequency is the fraction of comparisons that found a change.
	ChangeFrequency float64 `json:"change_frequency"`
	// HourHistogram sums total changes by the UTC hour of the newer snapshot.
	HourHistogram [24]int `json:"hour_histogram"`
	// BusiestHour is the hour with most changes, -1 when nothing changed.
	BusiestHour int     `json:"busiest_hour"`
	MeanChanges float64 `json:"mean_changes"`

	ChangeSets []ChangeSet `json:"change_sets"`
	Errors     []string    `json:"errors,omitempty"`
}
