package config

import "net"

// 穿透辅助服务种类
const (
	ServiceNintendo = "nintendo"
	ServiceSTUN     = "stun"
)

// ServiceConfig 穿透辅助服务配置
type ServiceConfig struct {
	// Kind "nintendo" 或 "stun"
	Kind string `json:"kind"`

	// Server1 / Server2 Nintendo 服务器主机名，为空时使用官方服务器
	Server1 string `json:"server1,omitempty"`
	Server2 string `json:"server2,omitempty"`

	// STUNServer STUN 服务器 host:port
	STUNServer string `json:"stun_server,omitempty"`

	// STUNAlternate 服务器不通告 OTHER-ADDRESS 时使用的第二台 STUN 服务器
	STUNAlternate string `json:"stun_alternate,omitempty"`
}

// DefaultServiceConfig 默认使用 Nintendo 服务
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{Kind: ServiceNintendo}
}

// Validate 验证服务配置
func (c ServiceConfig) Validate() error {
	switch c.Kind {
	case ServiceNintendo:
		return nil
	case ServiceSTUN:
		for field, v := range map[string]string{
			"service.stun_server":    c.STUNServer,
			"service.stun_alternate": c.STUNAlternate,
		} {
			if v == "" {
				continue
			}
			if _, _, err := net.SplitHostPort(v); err != nil {
				return invalid(field, "%q is not host:port", v)
			}
		}
		return nil
	default:
		return invalid("service.kind", "must be %q or %q, got %q", ServiceNintendo, ServiceSTUN, c.Kind)
	}
}
