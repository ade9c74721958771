package config

import (
	"net"
	"strconv"
	"time"
)

// ProxyConfig SOCKS5 代理配置
type ProxyConfig struct {
	// Address 代理 host:port，为空表示直连
	Address string `json:"address,omitempty"`

	// Username / Password RFC 1929 凭据，必须同时设置或同时为空
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// HandshakeTimeout TCP 连接与握手的总超时
	HandshakeTimeout Duration `json:"handshake_timeout"`
}

// DefaultProxyConfig 默认代理配置
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{HandshakeTimeout: Duration(10 * time.Second)}
}

// Validate 验证代理配置
func (c ProxyConfig) Validate() error {
	if (c.Username == "") != (c.Password == "") {
		return invalid("proxy.username/password", "must be given together")
	}
	if c.Address == "" {
		if c.Username != "" {
			return invalid("proxy.username", "requires a SOCKS5 proxy")
		}
		return nil
	}
	if len(c.Username) > 255 || len(c.Password) > 255 {
		return invalid("proxy.username/password", "must be at most 255 bytes")
	}
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil || host == "" {
		return invalid("proxy.address", "%q is not host:port", c.Address)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return invalid("proxy.address", "%q has an invalid port", c.Address)
	}
	if c.HandshakeTimeout < 0 {
		return invalid("proxy.handshake_timeout", "must not be negative")
	}
	return nil
}
