package uci

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	ast "github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/uciconfig"
)

// ParseError describes malformed UCI text.
type ParseError struct {
	Package string
	Line    int
	Text    string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Package, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s: %q", e.Package, e.Line, e.Reason, e.Text)
}

const maxLineSize = 1 << 20

// Decode parses UCI text into a Configuration Tree for pkg. A `package` line
// naming a different package is an error; empty input yields an empty tree.
func Decode(pkg string, data []byte) (*ast.Tree, error) {
	tree := ast.NewTree(pkg)
	declared := false
	var current *ast.Section

	fail := func(line int, text, reason string) error {
		return nxerrors.New(nxerrors.KindParse, &ParseError{Package: tree.Package, Line: line, Text: text, Reason: reason})
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		tokens, err := tokenize(raw)
		if err != nil {
			return nil, fail(lineNo, raw, err.Error())
		}
		if len(tokens) == 0 {
			continue
		}

		switch tokens[0] {
		case "package":
			if len(tokens) != 2 || tokens[1] == "" {
				return nil, fail(lineNo, raw, "package requires exactly one name")
			}
			name := tokens[1]
			switch {
			case declared && name != tree.Package:
				return nil, fail(lineNo, raw, "more than one package in a single file")
			case tree.Package != "" && name != tree.Package:
				return nil, fail(lineNo, raw, fmt.Sprintf("package %q does not match expected %q", name, tree.Package))
			}
			tree.Package = name
			declared = true
			current = nil

		case "config":
			if len(tokens) < 2 || tokens[1] == "" {
				return nil, fail(lineNo, raw, "config requires a section type")
			}
			if len(tokens) > 3 {
				return nil, fail(lineNo, raw, "unexpected tokens after section name")
			}
			if len(tokens) == 3 && tokens[2] != "" {
				current = tree.AddNamed(tokens[1], tokens[2])
			} else {
				current = tree.AddAnonymous(tokens[1])
			}

		case "option", "list":
			if current == nil {
				return nil, fail(lineNo, raw, tokens[0]+" outside of a config section")
			}
			if len(tokens) != 3 || tokens[1] == "" {
				return nil, fail(lineNo, raw, tokens[0]+" requires a key and a value")
			}
			key, value := tokens[1], tokens[2]
			existing, exists := current.Get(key)
			if tokens[0] == "option" {
				if exists && existing.IsList() {
					return nil, fail(lineNo, raw, fmt.Sprintf("option %q already declared as list", key))
				}
				current.Set(key, ast.Scalar(value))
				continue
			}
			if exists && !existing.IsList() {
				return nil, fail(lineNo, raw, fmt.Sprintf("list %q already declared as option", key))
			}
			current.Set(key, ast.List(append(existing.Items(), value)...))

		default:
			return nil, fail(lineNo, raw, fmt.Sprintf("unknown directive %q", tokens[0]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fail(lineNo, "", err.Error())
	}
	return tree, nil
}

// tokenize splits one line the way uci's shell-like lexer does: single
// quotes are literal, double quotes honour backslash escapes, a bare
// backslash escapes the next byte, adjacent pieces concatenate, and an
// unquoted # starts a comment.
func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inToken bool
	)
	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		case c == '#' && !inToken:
			return tokens, nil
		case c == '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated single quote")
			}
			current.WriteString(line[i+1 : i+1+end])
			inToken = true
			i += end + 1
		case c == '"':
			inToken = true
			closed := false
			for i++; i < len(line); i++ {
				if line[i] == '\\' && i+1 < len(line) {
					i++
					current.WriteByte(line[i])
					continue
				}
				if line[i] == '"' {
					closed = true
					break
				}
				current.WriteByte(line[i])
			}
			if !closed {
				return nil, fmt.Errorf("unterminated double quote")
			}
		case c == '\\':
			if i+1 >= len(line) {
				return nil, fmt.Errorf("trailing backslash")
			}
			i++
			current.WriteByte(line[i])
			inToken = true
		default:
			current.WriteByte(c)
			inToken = true
		}
	}
	flush()
	return tokens, nil
}

// Parser implements renderer.Parser over a Bundle of UCI packages.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes every package of the bundle.
func (p *Parser) Parse(ctx context.Context, bundle *uciconfig.Bundle, opts uciconfig.ParseOptions) (*ast.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if bundle == nil {
		return nil, nxerrors.New(nxerrors.KindParse, fmt.Errorf("bundle is nil"))
	}

	doc := &ast.Document{}
	for _, pkg := range bundle.Packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, err := Decode(pkg.Name, pkg.Content)
		if err != nil {
			if opts.BestEffort {
				continue
			}
			return nil, err
		}
		doc.Packages = append(doc.Packages, tree)
	}
	return doc, nil
}
