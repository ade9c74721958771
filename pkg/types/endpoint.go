package types

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrInvalidEndpoint 端点格式无效
var ErrInvalidEndpoint = errors.New("types: invalid endpoint")

// Endpoint UDP 端点（IP + 端口）
//
// Endpoint 是可比较的值类型，可直接用 == 判断映射是否一致。
// IPv4 映射的 IPv6 地址在构造时会被还原为 IPv4。
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// NewEndpoint 创建端点
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{Addr: addr.Unmap(), Port: port}
}

// EndpointFromAddrPort 从 netip.AddrPort 转换
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return NewEndpoint(ap.Addr(), ap.Port())
}

// EndpointFromUDPAddr 从 *net.UDPAddr 转换
func EndpointFromUDPAddr(a *net.UDPAddr) (Endpoint, bool) {
	if a == nil {
		return Endpoint{}, false
	}
	ip, ok := netip.AddrFromSlice(a.IP)
	if !ok {
		return Endpoint{}, false
	}
	return NewEndpoint(ip, uint16(a.Port)), true
}

// ParseEndpoint 解析 "ip:port" 形式的字符串
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, s, err)
	}
	return EndpointFromAddrPort(ap), nil
}

// IsValid 地址有效且端口非零
func (e Endpoint) IsValid() bool {
	return e.Addr.IsValid() && e.Port != 0
}

// AddrPort 转为 netip.AddrPort
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

// UDPAddr 转为 *net.UDPAddr
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.AddrPort())
}

// String 返回 "ip:port"
func (e Endpoint) String() string {
	if !e.Addr.IsValid() {
		return "<nil>"
	}
	return e.AddrPort().String()
}

// MarshalText 实现 encoding.TextMarshaler
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
