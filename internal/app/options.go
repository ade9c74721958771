package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// fxLogger fx 容器事件日志，只在 verbose 时输出
func fxLogger(verbose bool) fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		if verbose {
			if l, err := zap.NewDevelopment(); err == nil {
				return &fxevent.ZapLogger{Logger: l.Named("fx")}
			}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	})
}
