package uci

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	ast "github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/uciconfig"
)

// PlainTextRenderer renders UCI trees as plain UCI text.
type PlainTextRenderer struct{}

func NewPlainTextRenderer() *PlainTextRenderer {
	return &PlainTextRenderer{}
}

// Render implements renderer.Renderer.
func (r *PlainTextRenderer) Render(ctx context.Context, doc *ast.Document, opts uciconfig.RenderOptions) (*uciconfig.Bundle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if doc == nil {
		return nil, nxerrors.New(nxerrors.KindRender, fmt.Errorf("uci document is nil"))
	}

	trees := filterTrees(doc.Packages)
	if len(trees) == 0 {
		return nil, nxerrors.New(nxerrors.KindRender, fmt.Errorf("empty document"))
	}

	bundle := uciconfig.NewBundle("uci", "openwrt")
	for _, tree := range trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bundle.Packages = append(bundle.Packages, uciconfig.Package{
			Name:    tree.Package,
			Content: EncodeWith(tree, opts),
		})
	}

	if opts.IncludeAuxiliary {
		for _, file := range doc.Files {
			if file == nil {
				continue
			}
			mode, err := parseFileMode(file.GetMode())
			if err != nil {
				return nil, err
			}
			bundle.Files = append(bundle.Files, uciconfig.File{
				Path:    file.GetPath(),
				Mode:    mode,
				Content: []byte(file.GetContents()),
			})
		}
	}

	return bundle, nil
}

// Encode renders a tree the way `uci export` does, package line included.
// Sections keep tree order; options are sorted, scalars before lists.
func Encode(tree *ast.Tree) []byte {
	return EncodeWith(tree, uciconfig.RenderOptions{IncludePackageLine: true})
}

// EncodeWith renders a tree with explicit options.
func EncodeWith(tree *ast.Tree, opts uciconfig.RenderOptions) []byte {
	var b strings.Builder
	if opts.GenerationTag != "" {
		fmt.Fprintf(&b, "# %s\n", opts.GenerationTag)
	}
	if opts.IncludePackageLine && tree.Package != "" {
		fmt.Fprintf(&b, "package %s\n\n", tree.Package)
	}

	sections := tree.Sections()
	for idx, section := range sections {
		if section.Anonymous() {
			fmt.Fprintf(&b, "config %s\n", section.Type)
		} else {
			fmt.Fprintf(&b, "config %s %s\n", section.Type, quote(section.Name))
		}

		keys := section.Keys()
		for _, key := range keys {
			if value := section.Options[key]; !value.IsList() {
				fmt.Fprintf(&b, "\toption %s %s\n", key, quote(value.Text()))
			}
		}
		for _, key := range keys {
			value := section.Options[key]
			if !value.IsList() {
				continue
			}
			for _, item := range value.Items() {
				fmt.Fprintf(&b, "\tlist %s %s\n", key, quote(item))
			}
		}

		if idx < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	return []byte(b.String())
}

func parseFileMode(value string) (fs.FileMode, error) {
	if value == "" {
		return 0o644, nil
	}
	parsed, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return 0, nxerrors.New(nxerrors.KindValidation, fmt.Errorf("invalid file mode %q: %w", value, err))
	}
	return fs.FileMode(parsed), nil
}

func filterTrees(trees []*ast.Tree) []*ast.Tree {
	filtered := make([]*ast.Tree, 0, len(trees))
	for _, tree := range trees {
		if tree == nil || tree.Package == "" {
			continue
		}
		filtered = append(filtered, tree)
	}
	return filtered
}

// quote wraps value in single quotes; embedded quotes use the '\'' idiom.
func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
