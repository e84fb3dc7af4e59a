package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeybbq/uciconfig/pkg/snapshot"
)

func writeSnapshot(t *testing.T, dir string, ts time.Time, hostname string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	meta := fmt.Sprintf(`{"device": "edge-1", "timestamp": %q}`, ts.Format(time.RFC3339))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(meta), 0o644))
	system := fmt.Sprintf("config system\n\toption hostname '%s'\n", hostname)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "system"), []byte(system), 0o644))
}

func TestDeviceTrend(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	writeSnapshot(t, filepath.Join(root, "s1"), start, "a")
	writeSnapshot(t, filepath.Join(root, "s2"), start.Add(24*time.Hour), "a")
	writeSnapshot(t, filepath.Join(root, "s3"), start.Add(48*time.Hour+5*time.Hour), "b")

	trend, err := New().Device(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, "edge-1", trend.Device)
	assert.Equal(t, 3, trend.Snapshots)
	assert.Equal(t, 2, trend.Comparisons)
	assert.Equal(t, start, trend.TimeRange.Start)
	assert.Equal(t, start.Add(53*time.Hour), trend.TimeRange.End)

	require.Len(t, trend.ChangeSets, 2)
	assert.Equal(t, "s3", trend.ChangeSets[0].Target.VersionID)
	assert.Equal(t, "s2", trend.ChangeSets[0].Base.VersionID)
	assert.True(t, trend.ChangeSets[0].Changed())
	assert.False(t, trend.ChangeSets[1].Changed())
	assert.Equal(t, trend.ChangeSets[1].Base.Checksum, trend.ChangeSets[1].Target.Checksum)

	// hostname: one modified package, section and option
	assert.Equal(t, 1, trend.PackageStats.Modified)
	assert.Equal(t, 1, trend.SectionStats.Modified)
	assert.Equal(t, 1, trend.OptionStats.Modified)
	assert.Equal(t, 3, trend.TotalChanges)

	assert.InDelta(t, 0.5, trend.ChangeFrequency, 1e-9)
	assert.InDelta(t, 1.5, trend.MeanChanges, 1e-9)
	assert.InDelta(t, 3/(53.0/24), trend.SnapshotsPerDay, 1e-9)
	assert.Equal(t, 14, trend.BusiestHour)
	assert.Equal(t, 3, trend.HourHistogram[14])
	assert.Empty(t, trend.Errors)
}

func TestAggregateDegradesFailedLoads(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, filepath.Join(root, "s1"), start, "a")
	writeSnapshot(t, filepath.Join(root, "s3"), start.Add(2*time.Hour), "b")

	entries := []snapshot.Entry{
		{Name: "s3", Path: filepath.Join(root, "s3"), Time: start.Add(2 * time.Hour)},
		{Name: "s2", Path: filepath.Join(root, "s2"), Time: start.Add(time.Hour)},
		{Name: "s1", Path: filepath.Join(root, "s1"), Time: start},
	}

	trend, err := New().Aggregate(context.Background(), entries)
	require.NoError(t, err)

	require.Len(t, trend.ChangeSets, 2)
	for _, cs := range trend.ChangeSets {
		assert.Nil(t, cs.Record)
		assert.NotEmpty(t, cs.Error)
		assert.Zero(t, cs.TotalChanges())
	}
	assert.Len(t, trend.Errors, 2)
	assert.Zero(t, trend.TotalChanges)
	assert.Zero(t, trend.ChangeFrequency)
	assert.Equal(t, -1, trend.BusiestHour)
	assert.InDelta(t, 3.0, trend.SnapshotsPerDay, 1e-9)
}

func TestAggregateUnparsableMiddleSnapshot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	writeSnapshot(t, filepath.Join(root, "s1"), start, "a")
	writeSnapshot(t, filepath.Join(root, "s2"), start.Add(time.Hour), "a")
	writeSnapshot(t, filepath.Join(root, "s3"), start.Add(2*time.Hour), "a")
	broken := filepath.Join(root, "s2", "config", "system")
	require.NoError(t, os.WriteFile(broken, []byte("config system\n\toption hostname 'a'\nbogus line\n"), 0o644))

	trend, err := New().Device(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, trend.ChangeSets, 2)
	for _, cs := range trend.ChangeSets {
		require.NotNil(t, cs.Record)
		assert.Empty(t, cs.Record.Packages)
		assert.Zero(t, cs.TotalChanges())
	}
	assert.Zero(t, trend.PackageStats)
	assert.Zero(t, trend.TotalChanges)
	assert.Equal(t, -1, trend.BusiestHour)
	assert.Len(t, trend.Errors, 2)
}

func TestAggregateCustomLoader(t *testing.T) {
	t.Parallel()

	calls := 0
	loader := func(string) (*snapshot.Snapshot, error) {
		calls++
		return nil, errors.New("offline")
	}
	entries := []snapshot.Entry{{Name: "b"}, {Name: "a"}}

	trend, err := New(WithLoader(loader)).Aggregate(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "offline", trend.ChangeSets[0].Error)
}

func TestAggregateEmptyAndCanceled(t *testing.T) {
	t.Parallel()

	trend, err := New().Aggregate(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, trend.Comparisons)
	assert.Equal(t, -1, trend.BusiestHour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Aggregate(ctx, []snapshot.Entry{{Name: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSince(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []snapshot.Entry{
		{Name: "c", Time: start.Add(2 * time.Hour)},
		{Name: "b", Time: start.Add(time.Hour)},
		{Name: "a", Time: start},
	}
	got := Since(entries, start.Add(time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Name)
}
