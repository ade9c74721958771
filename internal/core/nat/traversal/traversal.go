// Package traversal 描述穿透辅助服务能提供哪些探测
//
// 分类器不关心具体服务，只向 Service 要一份 Plan：
//
//	Primary        E1，主端点
//	SameAddress    E2，与 E1 同 IP 不同端口
//	OtherAddress   E3，与 E1 不同 IP
//	ChangeAddress  请求服务从另一个 IP 回复
//	ChangePort     请求服务从另一个端口回复
//
// 服务不支持的项为 nil。
package traversal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/pkg/types"
)

// ErrResolve 服务主机名解析失败
var ErrResolve = errors.New("traversal: resolve failed")

// Plan 一次分类可用的探测
type Plan struct {
	// Prime 只发送不等待的预热数据报
	Prime []prober.Probe

	Primary       prober.Probe
	SameAddress   *prober.Probe
	OtherAddress  *prober.Probe
	ChangeAddress *prober.Probe
	ChangePort    *prober.Probe
}

// Service 穿透辅助服务
type Service interface {
	// Name 服务名
	Name() string

	// Codec 线格式
	Codec() codec.Codec

	// Resolve 解析服务端点，在任何探测之前调用一次
	Resolve(ctx context.Context) error

	// Plan 返回探测计划
	//
	// first 为 E1 的响应；E1 之前调用时为 nil，此时只需给出 Prime、Primary
	// 以及无需 E1 即可确定的项。
	Plan(first *codec.Response) Plan
}

// Resolver 主机名解析，*net.Resolver 满足该接口
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// lookup4 解析 IPv4 地址，IP 字面量直接返回
func lookup4(ctx context.Context, r Resolver, host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if !ip.Unmap().Is4() {
			return netip.Addr{}, fmt.Errorf("%w: %s is not IPv4", ErrResolve, host)
		}
		return ip.Unmap(), nil
	}
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %w", ErrResolve, host, err)
	}
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s has no IPv4 address", ErrResolve, host)
}

// lookupEndpoint 解析 host:port
func lookupEndpoint(ctx context.Context, r Resolver, hostport string) (types.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return types.Endpoint{}, fmt.Errorf("%w: %q: %w", ErrResolve, hostport, err)
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "udp", portStr)
	if err != nil || port <= 0 || port > 0xffff {
		return types.Endpoint{}, fmt.Errorf("%w: bad port in %q", ErrResolve, hostport)
	}
	ip, err := lookup4(ctx, r, host)
	if err != nil {
		return types.Endpoint{}, err
	}
	return types.NewEndpoint(ip, uint16(port)), nil
}

func ptr[T any](v T) *T { return &v }
