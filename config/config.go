// Package config 提供 ninat 的运行配置
//
// 配置按功能拆分到独立文件：
//   - Proxy: SOCKS5 代理（proxy.go）
//   - Probe: 探测超时、重试与突发发送（probe.go）
//   - Service: 穿透辅助服务（service.go）
//   - Report: 输出格式与指标文件（report.go）
//
// 命令行参数、NINAT_* 环境变量和 JSON 配置文件（--config）都会落到 Config 上，
// 任何网络活动开始前先调用 Validate。
//
// 使用示例：
//
//	cfg := config.DefaultConfig()
//	cfg.Proxy.Address = "127.0.0.1:1080"
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import "errors"

// Config ninat 完整配置
type Config struct {
	// Proxy SOCKS5 代理，Address 为空时直连
	Proxy ProxyConfig `json:"proxy"`

	// Probe 探测参数
	Probe ProbeConfig `json:"probe"`

	// Service 穿透辅助服务
	Service ServiceConfig `json:"service"`

	// Predict 映射非端点无关时测量端口分配可预测性
	Predict bool `json:"predict"`

	// Gateway 直连模式下查询本地网关的外部地址
	Gateway bool `json:"gateway"`

	// Report 输出
	Report ReportConfig `json:"report"`

	// Verbose 输出调试日志
	Verbose bool `json:"verbose,omitempty"`
}

// DefaultConfig 创建默认配置
func DefaultConfig() *Config {
	return &Config{
		Proxy:   DefaultProxyConfig(),
		Probe:   DefaultProbeConfig(),
		Service: DefaultServiceConfig(),
		Predict: true,
		Report:  DefaultReportConfig(),
	}
}

// Proxied 是否经由代理
func (c *Config) Proxied() bool {
	return c.Proxy.Address != ""
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Reason: "is nil"}
	}
	return errors.Join(
		c.Proxy.Validate(),
		c.Probe.Validate(),
		c.Service.Validate(),
		c.Report.Validate(),
	)
}
