// Package config loads the uciconfig YAML configuration file.
//
// A single file holds every setting. Defaults are applied first, then the
// file is decoded on top, so a file only needs the keys it changes:
//
//	merge:
//	  dry_run: false
//	  dedupe_lists: true
//	  preserve_network: true
//	  preserve_existing: true
//	  strategy: network_aware       # or preserve_order
//	  network_policy: drop          # or fail
//	  known_devices: [eth0, eth1, wlan0]
//	  concurrency: 4
//	paths:
//	  allowed_roots: [/etc/config, ${HOME}/staging]
//	log:
//	  level: info                   # debug, info, warn, error
//	  format: text                  # or json
//	report:
//	  format: text                  # json, html, cbor
//	  color: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/honeybbq/uciconfig/pkg/dedupe"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/report"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "UCICONFIG_CONFIG"

// Config is the root of the configuration file.
type Config struct {
	Merge  MergeConfig  `yaml:"merge"`
	Paths  PathsConfig  `yaml:"paths"`
	Log    LogConfig    `yaml:"log"`
	Report ReportConfig `yaml:"report"`
}

// MergeConfig mirrors merge.Options.
type MergeConfig struct {
	DryRun           bool     `yaml:"dry_run"`
	DedupeLists      bool     `yaml:"dedupe_lists"`
	PreserveNetwork  bool     `yaml:"preserve_network"`
	PreserveExisting bool     `yaml:"preserve_existing"`
	Strategy         string   `yaml:"strategy"`
	NetworkPolicy    string   `yaml:"network_policy"`
	KnownDevices     []string `yaml:"known_devices"`
	Concurrency      int      `yaml:"concurrency"`
}

// PathsConfig restricts the files the engine may touch.
type PathsConfig struct {
	AllowedRoots []string `yaml:"allowed_roots"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReportConfig sets the default report output.
type ReportConfig struct {
	Format string `yaml:"format"`
	Color  bool   `yaml:"color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	defaults := merge.DefaultOptions()
	return &Config{
		Merge: MergeConfig{
			DryRun:           defaults.DryRun,
			DedupeLists:      defaults.DedupeLists,
			PreserveNetwork:  defaults.PreserveNetwork,
			PreserveExisting: defaults.PreserveExisting,
			Strategy:         string(defaults.Strategy),
			NetworkPolicy:    string(defaults.NetworkPolicy),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Report: ReportConfig{
			Format: string(report.FormatText),
			Color:  true,
		},
	}
}

// Load reads the file named by UCICONFIG_CONFIG, or returns the defaults
// when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates the file at path. Unknown keys are errors.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("read config %s: %w", path, err))
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, nxerrors.New(nxerrors.KindValidation, fmt.Errorf("parse yaml: %w", err))
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	for i, root := range c.Paths.AllowedRoots {
		c.Paths.AllowedRoots[i] = os.ExpandEnv(root)
	}
}

// Validate rejects unknown strategies, policies, levels and formats.
func (c *Config) Validate() error {
	var errs []error
	if _, err := dedupe.ParseStrategy(c.Merge.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("merge.strategy: %w", err))
	}
	if _, err := merge.ParseNetworkPolicy(c.Merge.NetworkPolicy); err != nil {
		errs = append(errs, fmt.Errorf("merge.network_policy: %w", err))
	}
	if c.Merge.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("merge.concurrency must not be negative"))
	}
	for _, root := range c.Paths.AllowedRoots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, fmt.Errorf("paths.allowed_roots contains an empty entry"))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs = append(errs, fmt.Errorf("report.format: %w", err))
	}

	if len(errs) > 0 {
		return nxerrors.New(nxerrors.KindValidation, errors.Join(errs...))
	}
	return nil
}

// MergeOptions builds engine options. Strategy and policy were checked by
// Validate.
func (c *Config) MergeOptions(logger *slog.Logger) merge.Options {
	strategy, _ := dedupe.ParseStrategy(c.Merge.Strategy)
	policy, _ := merge.ParseNetworkPolicy(c.Merge.NetworkPolicy)
	return merge.Options{
		DryRun:           c.Merge.DryRun,
		DedupeLists:      c.Merge.DedupeLists,
		PreserveNetwork:  c.Merge.PreserveNetwork,
		PreserveExisting: c.Merge.PreserveExisting,
		Strategy:         strategy,
		NetworkPolicy:    policy,
		KnownDevices:     append([]string(nil), c.Merge.KnownDevices...),
		AllowedRoots:     append([]string(nil), c.Paths.AllowedRoots...),
		Concurrency:      c.Merge.Concurrency,
		Logger:           logger,
	}
}

// Logger builds a slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return level, nil
}
