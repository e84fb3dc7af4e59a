package renderer

import (
	"context"

	"github.com/honeybbq/uciconfig/pkg/uciconfig"
)

// Renderer writes a document as native text, generic over the document type.
type Renderer[T any] interface {
	Render(ctx context.Context, doc T, opts uciconfig.RenderOptions) (*uciconfig.Bundle, error)
}

// Parser reads native text back into a document.
type Parser[T any] interface {
	Parse(ctx context.Context, bundle *uciconfig.Bundle, opts uciconfig.ParseOptions) (T, error)
}
