package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// Metadata is the content of metadata.json. Timestamp falls back to the
// directory modification time when the file or its timestamp is missing.
type Metadata struct {
	Device    string         `json:"device,omitempty"`
	Label     string         `json:"label,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102_150405",
}

func readMetadata(dir string, info fs.FileInfo) (Metadata, error) {
	meta := Metadata{Timestamp: info.ModTime().UTC()}

	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("%s: %w", metadataFile, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return meta, fmt.Errorf("%s: %w", metadataFile, err)
	}

	for key, value := range raw {
		switch key {
		case "device", "hostname":
			if text, ok := value.(string); ok && meta.Device == "" {
				meta.Device = text
			}
		case "label":
			if text, ok := value.(string); ok {
				meta.Label = text
			}
		case "timestamp":
			ts, err := parseTimestamp(value)
			if err != nil {
				return meta, fmt.Errorf("%s: %w", metadataFile, err)
			}
			meta.Timestamp = ts
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]any)
			}
			meta.Extra[key] = value
		}
	}
	return meta, nil
}

// parseTimestamp accepts RFC 3339 and a few common layouts, or Unix seconds
// as a number or numeric string.
func parseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case float64:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case string:
		text := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return ts.UTC(), nil
			}
		}
		if sec, err := strconv.ParseFloat(text, 64); err == nil {
			return parseTimestamp(sec)
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
	default:
		return time.Time{}, fmt.Errorf("unrecognised timestamp %v", value)
	}
}

// Entry is a snapshot found by List, before it is loaded.
type Entry struct {
	Name string
	Path string
	Time time.Time
}

// List returns the snapshots stored under deviceDir, newest first. Ties
// are broken by name, newest name first.
func List(deviceDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(deviceDir)
	if err != nil {
		return nil, nxerrors.New(nxerrors.KindIO, fmt.Errorf("list snapshots in %s: %w", deviceDir, err))
	}

	var entries []Entry
	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() || strings.HasPrefix(dirEntry.Name(), ".") {
			continue
		}
		path := filepath.Join(deviceDir, dirEntry.Name())
		if !Exists(path) {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		// A broken metadata file still leaves the modification time.
		meta, _ := readMetadata(path, info)
		entries = append(entries, Entry{Name: dirEntry.Name(), Path: path, Time: meta.Timestamp})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Time.Equal(entries[j].Time) {
			return entries[i].Time.After(entries[j].Time)
		}
		return entries[i].Name > entries[j].Name
	})
	return entries, nil
}
