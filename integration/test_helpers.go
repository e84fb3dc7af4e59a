package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writeSnapshot copies configDir into deviceDir/name/config and stamps it
// with metadata.json, the layout a snapshot capture produces.
func writeSnapshot(deviceDir, name, configDir, device string, at time.Time) (string, error) {
	dir := filepath.Join(deviceDir, name)
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		return "", err
	}
	if err := os.CopyFS(filepath.Join(dir, "config"), os.DirFS(configDir)); err != nil {
		return "", fmt.Errorf("copy %s: %w", configDir, err)
	}
	metadata := fmt.Sprintf(`{"device": %q, "timestamp": %q}`, device, at.UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(metadata), 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// normalizeConfig 标准化配置文本用于比较
func normalizeConfig(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// compareConfigs 比较配置内容，忽略首尾空白
func compareConfigs(got, want string) bool {
	return normalizeConfig(got) == normalizeConfig(want)
}

// formatConfigDiff 格式化配置差异信息
func formatConfigDiff(got, want string) string {
	gotLines := strings.Split(normalizeConfig(got), "\n")
	wantLines := strings.Split(normalizeConfig(want), "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "config mismatch (got %d lines, want %d lines)\n", len(gotLines), len(wantLines))
	for i := 0; i < max(len(gotLines), len(wantLines)); i++ {
		var gotLine, wantLine string
		if i < len(gotLines) {
			gotLine = gotLines[i]
		}
		if i < len(wantLines) {
			wantLine = wantLines[i]
		}
		if gotLine != wantLine {
			fmt.Fprintf(&b, "line %d:\n  got:  %q\n  want: %q\n", i+1, gotLine, wantLine)
		}
	}
	return b.String()
}
