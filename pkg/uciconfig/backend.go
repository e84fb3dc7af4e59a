package uciconfig

import (
	"context"

	"google.golang.org/protobuf/proto"

	"github.com/honeybbq/uciconfig/pkg/ast/uci"
)

// Backend converts a NetJSON description of a device into UCI.
// Fragments produced this way feed the merge engine like any other source package.
type Backend interface {
	// Name returns the backend identifier (e.g., "openwrt").
	Name() string

	// ToTrees converts a NetJSON proto message into one Configuration Tree per UCI package.
	ToTrees(ctx context.Context, cfg proto.Message) ([]*uci.Tree, error)

	// ToNative renders a NetJSON proto message as UCI text packages.
	ToNative(ctx context.Context, cfg proto.Message, opts RenderOptions) (*Bundle, error)
}
