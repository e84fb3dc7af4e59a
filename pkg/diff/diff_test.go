package diff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	codec "github.com/honeybbq/uciconfig/pkg/renderer/uci"
)

const networkBefore = `config interface 'loopback'
	option device 'lo'
	option proto 'static'

config interface 'lan'
	option proto 'static'
	option ipaddr '192.168.1.1'
	list dns '8.8.8.8'

config device
	option name 'br-lan'
`

func parse(t *testing.T, pkg, text string) *uci.Tree {
	t.Helper()
	tree, err := codec.Decode(pkg, []byte(text))
	require.NoError(t, err)
	return tree
}

func TestTreesIdentical(t *testing.T) {
	t.Parallel()

	tree := parse(t, "network", networkBefore)
	d := Trees(tree, tree.Clone())
	assert.False(t, d.Changed())
	assert.Empty(t, d.Sections)

	stats := Stats(map[string]PackageDiff{"network": d})
	assert.Equal(t, Statistics{}, stats)
}

func TestTreesListScalarEquivalence(t *testing.T) {
	t.Parallel()

	before := parse(t, "firewall", "config zone 'lan'\n\tlist network 'lan'\n\tlist network 'guest'\n")
	after := parse(t, "firewall", "config zone 'lan'\n\toption network 'lan guest'\n")

	assert.False(t, Trees(before, after).Changed())
}

func TestTreesClassification(t *testing.T) {
	t.Parallel()

	after := parse(t, "network", `config interface 'lan'
	option proto 'static'
	option ipaddr '192.168.2.1'
	list dns '8.8.8.8'
	option mtu '1500'

config device
	option name 'br-lan'

config interface 'guest'
	option proto 'dhcp'
`)
	d := Trees(parse(t, "network", networkBefore), after)

	require.True(t, d.Changed())
	assert.Equal(t, StatusModified, d.Status)
	assert.Equal(t, []string{"guest", "lan", "loopback"}, d.SectionIDs())

	assert.Equal(t, StatusRemoved, d.Sections["loopback"].Status)
	assert.Equal(t, StatusAdded, d.Sections["guest"].Status)
	assert.Equal(t, StatusAdded, d.Sections["guest"].Options["proto"].Status)

	lan := d.Sections["lan"]
	assert.Equal(t, StatusModified, lan.Status)
	assert.Equal(t, []string{"ipaddr", "mtu"}, lan.OptionNames())
	assert.Equal(t, "192.168.1.1", lan.Options["ipaddr"].Before.Text())
	assert.Equal(t, "192.168.2.1", lan.Options["ipaddr"].After.Text())
	assert.Equal(t, StatusAdded, lan.Options["mtu"].Status)
	assert.Nil(t, lan.Options["mtu"].Before)

	stats := Stats(map[string]PackageDiff{"network": d})
	assert.Equal(t, Counts{Modified: 1}, stats.Packages)
	assert.Equal(t, Counts{Added: 1, Removed: 1, Modified: 1}, stats.Sections)
	assert.Equal(t, Counts{Added: 1, Modified: 1}, stats.Options)
	assert.Equal(t, 6, stats.TotalChanges)
}

func TestTreesTypeChanged(t *testing.T) {
	t.Parallel()

	d := Trees(
		parse(t, "network", "config interface 'x'\n\toption proto 'dhcp'\n"),
		parse(t, "network", "config device 'x'\n\toption proto 'dhcp'\n"),
	)
	sd := d.Sections["x"]
	assert.Equal(t, StatusModified, sd.Status)
	assert.True(t, sd.TypeChanged)
	assert.Equal(t, "interface", sd.BeforeType)
	assert.Equal(t, "device", sd.Type)
	assert.Empty(t, sd.Options)
}

func TestPackagesAddedRemoved(t *testing.T) {
	t.Parallel()

	before := map[string]*uci.Tree{
		"network":  parse(t, "network", networkBefore),
		"dropbear": parse(t, "dropbear", "config dropbear\n\toption Port '22'\n"),
	}
	after := map[string]*uci.Tree{
		"network": parse(t, "network", networkBefore),
		"system":  parse(t, "system", "config system\n\toption hostname 'r1'\n"),
	}

	packages := Packages(before, after)
	require.Len(t, packages, 2)
	assert.Equal(t, StatusRemoved, packages["dropbear"].Status)
	assert.Equal(t, StatusAdded, packages["system"].Status)

	// sections of added and removed packages are not counted
	stats := Stats(packages)
	assert.Equal(t, Counts{Added: 1, Removed: 1}, stats.Packages)
	assert.Equal(t, Counts{}, stats.Sections)
	assert.Equal(t, 2, stats.TotalChanges)
}

func writeSnapshot(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	beforeDir := filepath.Join(root, "before")
	afterDir := filepath.Join(root, "after")
	writeSnapshot(t, beforeDir, map[string]string{
		"metadata.json":       `{"device": "edge-1", "timestamp": "2024-03-01T10:00:00Z"}`,
		"config/system":       "config system\n\toption hostname 'edge-1'\n",
		"config/rpcd":         "config rpcd\n",
		"system_info.json":    `{"kernel": "5.15.1", "uptime": 100}`,
		"service_status.json": `{"dnsmasq": "running"}`,
	})
	writeSnapshot(t, afterDir, map[string]string{
		"metadata.json":       `{"device": "edge-1", "timestamp": "2024-03-02T10:00:00Z"}`,
		"config/system":       "config system\n\toption hostname 'edge-2'\n",
		"config/rpcd":         "config rpcd\n",
		"system_info.json":    `{"kernel": "5.15.1", "uptime": 200}`,
		"service_status.json": `{"dnsmasq": "running"}`,
	})

	rec, err := Dirs(beforeDir, afterDir)
	require.NoError(t, err)

	assert.True(t, rec.Summary.Changed)
	assert.Equal(t, "edge-1", rec.Summary.Device)
	assert.Equal(t, []string{"system"}, rec.PackageNames())
	assert.Equal(t, []string{"system"}, rec.FileNames())
	assert.Contains(t, rec.FileDiffs["system"].Unified, "-\toption hostname 'edge-1'")
	assert.Contains(t, rec.FileDiffs["system"].Unified, "+\toption hostname 'edge-2'")
	assert.Equal(t, []string{"system_info.uptime"}, rec.SystemKeys())
	assert.Equal(t, BlobDiff{Status: StatusModified, Before: "100", After: "200"}, rec.SystemChanges["system_info.uptime"])
	assert.Equal(t, 3, rec.Statistics.TotalChanges)
	assert.Empty(t, rec.Errors)
}

func TestDirsSameSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSnapshot(t, dir, map[string]string{
		"metadata.json":  `{"timestamp": "2024-03-01T10:00:00Z"}`,
		"config/network": networkBefore,
	})

	rec, err := Dirs(dir, dir)
	require.NoError(t, err)
	assert.False(t, rec.Summary.Changed)
	assert.Zero(t, rec.Statistics.TotalChanges)
	assert.Empty(t, rec.FileDiffs)
}

func TestDirsUnparsablePackage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	beforeDir := filepath.Join(root, "before")
	afterDir := filepath.Join(root, "after")
	writeSnapshot(t, beforeDir, map[string]string{
		"metadata.json":  `{"timestamp": "2024-03-01T10:00:00Z"}`,
		"config/network": networkBefore,
	})
	writeSnapshot(t, afterDir, map[string]string{
		"metadata.json":  `{"timestamp": "2024-03-02T10:00:00Z"}`,
		"config/network": networkBefore + "bogus line\n",
	})

	rec, err := Dirs(beforeDir, afterDir)
	require.NoError(t, err)

	assert.Empty(t, rec.Packages)
	assert.Equal(t, Statistics{}, rec.Statistics)
	assert.Equal(t, []string{"network"}, rec.FileNames())
	assert.Equal(t, StatusModified, rec.FileDiffs["network"].Status)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "after: network")

	back, err := Dirs(afterDir, beforeDir)
	require.NoError(t, err)
	assert.Empty(t, back.Packages)
	assert.Zero(t, back.Statistics.TotalChanges)
}

func TestDirsMissing(t *testing.T) {
	t.Parallel()

	_, err := Dirs(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.ErrorContains(t, err, "before")
}

func TestConfigs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	before := filepath.Join(dir, "network.old")
	after := filepath.Join(dir, "network")
	require.NoError(t, os.WriteFile(before, []byte(networkBefore), 0o644))
	changed := strings.Replace(networkBefore, "192.168.1.1", "192.168.2.1", 1)
	require.NoError(t, os.WriteFile(after, []byte(changed), 0o644))

	rec, err := Configs("network", before, after)
	require.NoError(t, err)
	assert.True(t, rec.Summary.Changed)
	assert.Equal(t, []string{"network"}, rec.PackageNames())
	assert.Equal(t, StatusModified, rec.FileDiffs["network"].Status)

	added, err := Configs("network", filepath.Join(dir, "missing"), after)
	require.NoError(t, err)
	assert.Equal(t, StatusAdded, added.Packages["network"].Status)

	_, err = Configs("network", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	assert.True(t, nxerrors.Is(err, nxerrors.KindIO))
}
