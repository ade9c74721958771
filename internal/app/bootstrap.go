package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/internal/core/nat/classifier"
	"github.com/dep2p/go-ninat/internal/core/nat/gateway"
	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("app")

// stopTimeout 停止 fx 应用的上限，覆盖指标文件写出
const stopTimeout = 5 * time.Second

// Bootstrap 应用引导程序
//
// 每次 Run 都新建 fx 应用，运行一次分类后停止。
type Bootstrap struct {
	config *config.Config
	extra  []fx.Option
}

// NewBootstrap 创建引导程序
//
// extra 追加到模块之后，测试用 fx.Decorate 替换服务或传输。
func NewBootstrap(cfg *config.Config, extra ...fx.Option) *Bootstrap {
	return &Bootstrap{config: cfg, extra: extra}
}

// Run 校验配置、组装模块并执行一次分类
//
// 配置错误在任何网络活动之前返回。
func (b *Bootstrap) Run(ctx context.Context) (res *types.Result, err error) {
	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		logger.SetGlobalLevel(slog.LevelDebug)
	}

	var (
		cls *classifier.Classifier
		gw  *gateway.Discoverer
	)
	app := fx.New(
		ServiceModules(cfg.Service),
		TransportModules(cfg.Proxy),
		CoreModules(cfg),
		fx.Options(b.extra...),
		fxLogger(cfg.Verbose),
		fx.Populate(&cls, &gw),
	)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("assemble app: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start app: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		err = multierr.Append(err, app.Stop(stopCtx))
	}()

	res, err = cls.Classify(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Gateway {
		b.routerView(ctx, gw, res)
	}
	return res, nil
}

// routerView 附加网关自报告的外部地址，失败只记录日志
func (b *Bootstrap) routerView(ctx context.Context, gw *gateway.Discoverer, res *types.Result) {
	if res.Proxied {
		res.AddNote("router view skipped: local gateway is not on the proxied path")
		return
	}
	info, err := gw.Discover(ctx)
	if info != nil {
		res.Router = info
		for _, note := range gateway.Notes(info, res.External) {
			res.AddNote(note)
		}
	}
	if err != nil {
		log.Warn("router view unavailable", "err", err)
	}
}

// Run 便捷函数，等价于 NewBootstrap(cfg, extra...).Run(ctx)
func Run(ctx context.Context, cfg *config.Config, extra ...fx.Option) (*types.Result, error) {
	return NewBootstrap(cfg, extra...).Run(ctx)
}
