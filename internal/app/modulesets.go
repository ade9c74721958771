// Package app 组装 ninat 的运行时
//
// modulesets.go 集中维护按配置装配的模块，是 Bootstrap 组装的唯一模块来源。
package app

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/internal/core/metrics"
	"github.com/dep2p/go-ninat/internal/core/nat/classifier"
	"github.com/dep2p/go-ninat/internal/core/nat/gateway"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/socks5"
	"github.com/dep2p/go-ninat/internal/core/transport/udp"
)

// ============================================================================
//                              模块集合
// ============================================================================

// ServiceModules 穿透辅助服务
func ServiceModules(cfg config.ServiceConfig) fx.Option {
	return fx.Module("traversal",
		fx.Provide(func() traversal.Service { return provideService(cfg) }),
	)
}

// TransportModules 直连或 SOCKS5 传输
func TransportModules(cfg config.ProxyConfig) fx.Option {
	return fx.Module("transport",
		fx.Provide(func() transport.Opener { return provideOpener(cfg) }),
	)
}

// CoreModules 分类器、指标与网关查询
func CoreModules(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(classifierConfig(cfg)),
		fx.Supply(metrics.Config{TextfilePath: cfg.Report.MetricsFile}),
		metrics.Module,
		classifier.Module(),
		fx.Provide(func() *gateway.Discoverer { return gateway.New(gateway.DefaultTimeout) }),
	)
}

// ============================================================================
//                              配置转换
// ============================================================================

func provideService(cfg config.ServiceConfig) traversal.Service {
	if cfg.Kind == config.ServiceSTUN {
		return &traversal.STUN{Server: cfg.STUNServer, Alternate: cfg.STUNAlternate}
	}
	return &traversal.Nintendo{Server1: cfg.Server1, Server2: cfg.Server2}
}

func provideOpener(cfg config.ProxyConfig) transport.Opener {
	if cfg.Address == "" {
		return &udp.Opener{}
	}
	o := &socks5.Opener{
		Address:          cfg.Address,
		HandshakeTimeout: cfg.HandshakeTimeout.Duration(),
	}
	if cfg.Username != "" {
		o.Auth = &socks5.Auth{Username: cfg.Username, Password: cfg.Password}
	}
	return o
}

func classifierConfig(cfg *config.Config) *classifier.Config {
	return &classifier.Config{
		Probe: prober.Config{
			Timeout:  cfg.Probe.Timeout.Duration(),
			Attempts: cfg.Probe.Attempts,
			Burst:    cfg.Probe.Burst,
			Pace:     cfg.Probe.Pace.Duration(),
		},
		Predict: cfg.Predict,
	}
}
