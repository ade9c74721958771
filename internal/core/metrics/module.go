package metrics

import (
	"context"

	"go.uber.org/fx"
)

// Config 指标配置
type Config struct {
	// TextfilePath 非空时在应用停止时写入 textfile
	TextfilePath string
}

// Params Recorder 依赖参数
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(NewRecorderFromParams),
)

// NewRecorderFromParams 创建 Recorder，并按配置注册 textfile 导出
func NewRecorderFromParams(p Params) *Recorder {
	rec := NewRecorder()
	if path := p.Config.TextfilePath; path != "" {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return rec.WriteTextfile(path)
			},
		})
	}
	return rec
}
