package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeybbq/uciconfig/pkg/dedupe"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

func TestDefaultMatchesEngineDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.MergeOptions(nil)
	defaults := merge.DefaultOptions()
	assert.Equal(t, defaults.DedupeLists, opts.DedupeLists)
	assert.Equal(t, defaults.PreserveNetwork, opts.PreserveNetwork)
	assert.Equal(t, defaults.PreserveExisting, opts.PreserveExisting)
	assert.Equal(t, defaults.Strategy, opts.Strategy)
	assert.Equal(t, defaults.NetworkPolicy, opts.NetworkPolicy)
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Setenv("STAGING_ROOT", "/srv/staging")

	cfg, err := Parse([]byte(`
merge:
  dry_run: true
  strategy: preserve_order
  network_policy: fail
  known_devices: [eth0, eth1]
paths:
  allowed_roots: [/etc/config, "${STAGING_ROOT}/configs"]
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	opts := cfg.MergeOptions(nil)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.DedupeLists, "unset keys keep their default")
	assert.Equal(t, dedupe.PreserveOrder, opts.Strategy)
	assert.Equal(t, merge.NetworkPolicyFail, opts.NetworkPolicy)
	assert.Equal(t, []string{"eth0", "eth1"}, opts.KnownDevices)
	assert.Equal(t, []string{"/etc/config", "/srv/staging/configs"}, opts.AllowedRoots)

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown key", yaml: "merge:\n  dryrun: true\n"},
		{name: "strategy", yaml: "merge:\n  strategy: fuzzy\n"},
		{name: "policy", yaml: "merge:\n  network_policy: ignore\n"},
		{name: "level", yaml: "log:\n  level: loud\n"},
		{name: "log format", yaml: "log:\n  format: xml\n"},
		{name: "report format", yaml: "report:\n  format: pdf\n"},
		{name: "concurrency", yaml: "merge:\n  concurrency: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, nxerrors.Is(err, nxerrors.KindValidation), "got %v", err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uciconfig.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  format: html\n"), 0o644))
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "html", cfg.Report.Format)

	t.Setenv(EnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.True(t, nxerrors.Is(err, nxerrors.KindIO))
}
