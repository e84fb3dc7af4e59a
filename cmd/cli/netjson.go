package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	openwrtbackend "github.com/honeybbq/uciconfig/backend/openwrt"
	domain "github.com/honeybbq/uciconfig/domain/openwrt"
	"github.com/honeybbq/uciconfig/pkg/pathsafe"
	ucirenderer "github.com/honeybbq/uciconfig/pkg/renderer/uci"
	"github.com/honeybbq/uciconfig/pkg/uciconfig"

	openwrtv1 "github.com/honeybbq/netjson/gen/go/netjson/openwrt/v1"
)

type netjsonFlags struct {
	lenient bool
}

func newNetJSONCmd(a *app) *cobra.Command {
	flags := &netjsonFlags{}
	cmd := &cobra.Command{
		Use:   "netjson",
		Short: "Convert NetJSON OpenWrt descriptions into UCI",
		Long: `Layer one or more NetJSON documents (later ones override earlier ones)
and convert the result into UCI packages. Comments and trailing commas are
accepted in the input.`,
	}
	cmd.PersistentFlags().BoolVar(&flags.lenient, "lenient", false, "ignore unknown NetJSON fields")
	cmd.AddCommand(newNetJSONRenderCmd(a, flags), newNetJSONImportCmd(a, flags))
	return cmd
}

func newNetJSONRenderCmd(a *app, flags *netjsonFlags) *cobra.Command {
	var (
		outputDir string
		filesDir  string
	)
	cmd := &cobra.Command{
		Use:   "render FRAGMENT...",
		Short: "Print the UCI packages of layered NetJSON fragments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := loadFragments(args, flags.lenient)
			if err != nil {
				return err
			}
			backend := openwrtbackend.New(ucirenderer.NewPlainTextRenderer())
			bundle, err := backend.ToNative(cmd.Context(), msg, uciconfig.RenderOptions{
				IncludePackageLine: outputDir == "",
				IncludeAuxiliary:   filesDir != "",
			})
			if err != nil {
				return err
			}
			if outputDir == "" {
				return writeBundle(a.stdout, bundle)
			}
			return writeBundleToFiles(outputDir, filesDir, bundle)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "write packages under DIR/etc/config instead of stdout")
	cmd.Flags().StringVar(&filesDir, "files-dir", "", "directory for auxiliary files")
	return cmd
}

func newNetJSONImportCmd(a *app, flags *netjsonFlags) *cobra.Command {
	var targetDir string
	cmd := &cobra.Command{
		Use:   "import FRAGMENT...",
		Short: "Merge layered NetJSON fragments into a UCI config directory",
		Long: `Convert layered NetJSON fragments into UCI packages and merge each one
into TARGET_DIR/<package> with the same rules as merge: existing values win
and conflicts are reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := loadFragments(args, flags.lenient)
			if err != nil {
				return err
			}
			trees, err := openwrtbackend.New(nil).ToTrees(cmd.Context(), msg)
			if err != nil {
				return err
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}
			label := strings.Join(args, ",")
			for _, tree := range trees {
				target := filepath.Join(targetDir, tree.Package)
				outcome, err := engine.MergeTree(tree, label, target)
				if err != nil {
					_ = a.writeSummary(engine.Summary())
					return err
				}
				if err := engine.SaveConfig(outcome.Tree, target); err != nil {
					return err
				}
			}
			return a.writeSummary(engine.Summary())
		},
	}
	cmd.Flags().StringVarP(&targetDir, "target-dir", "t", "/etc/config", "UCI config directory to merge into")
	return cmd
}

func loadFragments(paths []string, lenient bool) (*openwrtv1.OpenWrtConfig, error) {
	fragments := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := readInput(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		fragments = append(fragments, data)
	}
	data := fragments[0]
	if len(fragments) > 1 {
		merged, err := domain.MergeFragments(fragments, nil)
		if err != nil {
			return nil, err
		}
		data = merged
	}
	return domain.DecodeFragment(data, lenient)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeBundle 将 bundle 输出到 writer（用于 stdout）
func writeBundle(w io.Writer, bundle *uciconfig.Bundle) error {
	for i, pkg := range bundle.Packages {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := w.Write(pkg.Content); err != nil {
			return err
		}
	}
	return nil
}

// writeBundleToFiles 每个包独立文件到 <dir>/etc/config/<name>
func writeBundleToFiles(dir, filesDir string, bundle *uciconfig.Bundle) error {
	configDir := filepath.Join(dir, "etc", "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", configDir, err)
	}
	for _, pkg := range bundle.Packages {
		target := filepath.Join(configDir, pkg.Name)
		if err := os.WriteFile(target, pkg.Content, 0o644); err != nil {
			return fmt.Errorf("write package file %q: %w", target, err)
		}
	}
	if len(bundle.Files) > 0 {
		return writeBundleFiles(filesDir, bundle.Files)
	}
	return nil
}

func writeBundleFiles(dir string, files []uciconfig.File) error {
	if dir == "" {
		return fmt.Errorf("additional files produced; specify --files-dir to write them")
	}
	paths, err := pathsafe.New(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		rel := strings.TrimLeft(file.Path, "/")
		if rel == "" {
			return fmt.Errorf("invalid additional file path %q", file.Path)
		}
		target, err := paths.Check(filepath.Join(dir, rel))
		if err != nil {
			return fmt.Errorf("additional file %q: %w", file.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directories for %q: %w", target, err)
		}
		mode := file.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(target, file.Content, mode); err != nil {
			return fmt.Errorf("write additional file %q: %w", target, err)
		}
	}
	return nil
}
