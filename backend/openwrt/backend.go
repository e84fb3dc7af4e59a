package openwrt

import (
	"context"
	"errors"

	openwrtv1 "github.com/honeybbq/netjson/gen/go/netjson/openwrt/v1"

	"google.golang.org/protobuf/proto"

	domain "github.com/honeybbq/uciconfig/domain/openwrt"
	"github.com/honeybbq/uciconfig/pkg/ast/uci"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
	"github.com/honeybbq/uciconfig/pkg/renderer"
	"github.com/honeybbq/uciconfig/pkg/uciconfig"
)

// Backend 实现 OpenWrt NetJSON → UCI 转换。
type Backend struct {
	renderer renderer.Renderer[*uci.Document]
}

var _ uciconfig.Backend = (*Backend)(nil)

// New 构造 Backend。
func New(r renderer.Renderer[*uci.Document]) *Backend {
	return &Backend{renderer: r}
}

// Name 实现 Backend 接口。
func (b *Backend) Name() string {
	return "openwrt"
}

// ToTrees converts the message into merge-ready trees.
func (b *Backend) ToTrees(ctx context.Context, cfg proto.Message) ([]*uci.Tree, error) {
	domainCfg, err := b.domain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return domainCfg.ToTrees()
}

// ToNative 实现前向转换。
func (b *Backend) ToNative(ctx context.Context, cfg proto.Message, opts uciconfig.RenderOptions) (*uciconfig.Bundle, error) {
	domainCfg, err := b.domain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	doc, err := domainCfg.ToDocument()
	if err != nil {
		return nil, err
	}
	if b.renderer == nil {
		return nil, nxerrors.New(nxerrors.KindInternal, errors.New("renderer not configured"))
	}
	bundle, err := b.renderer.Render(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	bundle.Metadata.Backend = b.Name()
	return bundle, nil
}

func (b *Backend) domain(ctx context.Context, cfg proto.Message) (*domain.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	owrtCfg, ok := cfg.(*openwrtv1.OpenWrtConfig)
	if !ok {
		return nil, nxerrors.New(nxerrors.KindValidation, errors.New("expected OpenWrtConfig payload"))
	}
	return domain.FromProto(owrtCfg)
}
