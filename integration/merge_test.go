package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openwrtbackend "github.com/honeybbq/uciconfig/backend/openwrt"
	domain "github.com/honeybbq/uciconfig/domain/openwrt"
	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/history"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/report"
	ucirenderer "github.com/honeybbq/uciconfig/pkg/renderer/uci"
)

const (
	liveNetwork = `config interface 'lan'
	option device 'br-lan'
	option proto 'static'
	option ipaddr '192.168.1.1'

config device
	option name 'br-lan'
	option type 'bridge'
	list ports 'lan1'
`
	liveSystem = `config system
	option hostname 'OpenWrt'
	option timezone 'UTC'
`
	globalTemplate = `{
		"dns_servers": ["9.9.9.9"],
		"ntp": {"enabled": true, "servers": ["pool.ntp.org"]}
	}`
	deviceTemplate = `{
		// site specific
		"general": {"hostname": "edge-1"},
		"interfaces": [
			{
				"name": "lan",
				"proto": "static",
				"addresses": [{"family": "ipv4", "address": "10.0.0.1", "mask": 24}]
			},
			{
				"name": "guest",
				"proto": "static",
				"addresses": [{"family": "ipv4", "address": "192.168.3.1", "mask": 24}]
			}
		],
	}`
	firewallFragment = `config zone 'guest'
	option name 'guest'
	option input 'REJECT'
	list network 'guest'
`
	wantSystem = `package system

config system
	option hostname 'OpenWrt'
	option timezone 'UTC'

config timeserver 'ntp'
	option enabled '1'
	list server 'pool.ntp.org'
`
)

type fixture struct {
	root      string
	configDir string
	engine    *merge.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	configDir := filepath.Join(root, "etc", "config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "network"), []byte(liveNetwork), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "system"), []byte(liveSystem), 0o644))

	opts := merge.DefaultOptions()
	opts.AllowedRoots = []string{root}
	engine, err := merge.New(opts)
	require.NoError(t, err)
	return &fixture{root: root, configDir: configDir, engine: engine}
}

// importNetJSON layers the templates, converts them and merges every
// resulting package into the live config directory.
func (f *fixture) importNetJSON(t *testing.T, templates ...string) {
	t.Helper()
	fragments := make([][]byte, 0, len(templates))
	for _, tpl := range templates {
		fragments = append(fragments, []byte(tpl))
	}
	merged, err := domain.MergeFragments(fragments, nil)
	require.NoError(t, err)
	msg, err := domain.DecodeFragment(merged, false)
	require.NoError(t, err)

	trees, err := openwrtbackend.New(ucirenderer.NewPlainTextRenderer()).ToTrees(context.Background(), msg)
	require.NoError(t, err)
	for _, tree := range trees {
		target := filepath.Join(f.configDir, tree.Package)
		outcome, err := f.engine.MergeTree(tree, "netjson", target)
		require.NoError(t, err)
		require.NoError(t, f.engine.SaveConfig(outcome.Tree, target))
	}
}

func (f *fixture) mergeDirectory(t *testing.T, files map[string]string) *merge.DirectoryResult {
	t.Helper()
	source := filepath.Join(f.root, "fragments")
	for name, content := range files {
		require.NoError(t, os.MkdirAll(source, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(source, name), []byte(content), 0o644))
	}
	result, err := f.engine.MergeDirectory(context.Background(), source, f.configDir)
	require.NoError(t, err)
	for name, file := range result.Files {
		if file.Success {
			require.NoError(t, f.engine.SaveConfig(file.Outcome.Tree, filepath.Join(f.configDir, name)))
		}
	}
	return result
}

func TestNetJSONImportKeepsLiveValues(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.importNetJSON(t, globalTemplate, deviceTemplate)

	summary := f.engine.Summary()
	conflicts := map[string]uci.Value{}
	for _, c := range summary.Conflicts {
		assert.True(t, c.Kept)
		conflicts[c.Config+"."+c.Section+"."+c.Option] = c.Existing
	}
	assert.Equal(t, map[string]uci.Value{
		"system.@system[0].hostname": uci.Scalar("OpenWrt"),
		"network.lan.device":         uci.Scalar("br-lan"),
		"network.lan.ipaddr":         uci.Scalar("192.168.1.1"),
	}, conflicts)

	system, err := os.ReadFile(filepath.Join(f.configDir, "system"))
	require.NoError(t, err)
	if !compareConfigs(string(system), wantSystem) {
		t.Fatal(formatConfigDiff(string(system), wantSystem))
	}

	network, err := ucirenderer.Decode("network", mustRead(t, filepath.Join(f.configDir, "network")))
	require.NoError(t, err)
	assert.Equal(t, []string{"lan", "@device[0]", "guest"}, network.IDs())
	lan, _ := network.Section("lan")
	dns, _ := lan.Get("dns")
	assert.Equal(t, uci.List("9.9.9.9"), dns)
	netmask, _ := lan.Get("netmask")
	assert.Equal(t, uci.Scalar("255.255.255.0"), netmask)
}

func TestNetJSONImportIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.importNetJSON(t, globalTemplate, deviceTemplate)
	first := mustRead(t, filepath.Join(f.configDir, "network"))

	f.engine.Reset()
	f.importNetJSON(t, globalTemplate, deviceTemplate)

	for _, change := range f.engine.Summary().Changes {
		assert.Contains(t, []merge.Action{merge.ActionMergeConfig, merge.ActionSaveConfig}, change.Action,
			"unexpected %s on %s.%s", change.Action, change.Section, change.Option)
	}
	assert.Equal(t, string(first), string(mustRead(t, filepath.Join(f.configDir, "network"))))
}

func TestPipelineSnapshotsDiffAndTrend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	deviceDir := filepath.Join(f.root, "snapshots", "edge-1")
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	before, err := writeSnapshot(deviceDir, "20240501_080000", f.configDir, "edge-1", start)
	require.NoError(t, err)

	f.importNetJSON(t, globalTemplate, deviceTemplate)
	result := f.mergeDirectory(t, map[string]string{"firewall": firewallFragment, ".skipped": "junk"})
	assert.Empty(t, result.Failed())
	assert.NotContains(t, result.Files, ".skipped")

	after, err := writeSnapshot(deviceDir, "20240501_160000", f.configDir, "edge-1", start.Add(8*time.Hour))
	require.NoError(t, err)

	rec, err := diff.Dirs(before, after)
	require.NoError(t, err)
	assert.Empty(t, rec.Errors)
	assert.Equal(t, "edge-1", rec.Summary.Device)
	assert.Equal(t, []string{"firewall", "network", "system"}, rec.PackageNames())
	assert.Equal(t, diff.StatusAdded, rec.Packages["firewall"].Status)
	assert.Equal(t, diff.Counts{Added: 1, Modified: 2}, rec.Statistics.Packages)
	assert.Equal(t, diff.Counts{Added: 2, Modified: 1}, rec.Statistics.Sections)
	assert.Equal(t, diff.Counts{Added: 2}, rec.Statistics.Options)
	assert.Equal(t, 8, rec.Statistics.TotalChanges)
	assert.Equal(t, 3, rec.Summary.FilesChanged)

	trend, err := history.New().Device(context.Background(), deviceDir)
	require.NoError(t, err)
	assert.Equal(t, 2, trend.Snapshots)
	assert.Equal(t, 1, trend.Comparisons)
	assert.Equal(t, rec.Statistics.TotalChanges, trend.TotalChanges)
	assert.Equal(t, 16, trend.BusiestHour)
	assert.InDelta(t, 1.0, trend.ChangeFrequency, 1e-9)

	var page bytes.Buffer
	require.NoError(t, report.Record(&page, rec, report.FormatHTML, report.Options{}))
	assert.Contains(t, page.String(), "firewall")
	assert.Contains(t, page.String(), "pool.ntp.org")
}

func TestMergeRefusesPathsOutsideRoots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "network")
	require.NoError(t, os.WriteFile(outside, []byte(liveNetwork), 0o644))

	_, err := f.engine.MergeConfig("network", outside, filepath.Join(f.configDir, "network"))
	require.Error(t, err)
	assert.Equal(t, liveNetwork, string(mustRead(t, filepath.Join(f.configDir, "network"))))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
