package classifier

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-ninat/internal/core/metrics"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Service traversal.Service
	Opener  transport.Opener

	// Config 未提供时使用 DefaultConfig
	Config *Config `optional:"true"`

	Metrics *metrics.Recorder `optional:"true"`
}

// ProvideClassifier 从依赖创建分类器
func ProvideClassifier(in ModuleInput) *Classifier {
	cfg := DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
	}
	return New(in.Service, in.Opener, cfg, in.Metrics)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("nat/classifier",
		fx.Provide(ProvideClassifier),
	)
}
