package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("nat/gateway")

// 网关查询方式
const (
	MethodNATPMP = "nat-pmp"
	MethodUPnP   = "upnp"
)

// DefaultTimeout 默认查询超时
const DefaultTimeout = 2 * time.Second

var (
	// ErrNoGateway 找不到默认网关
	ErrNoGateway = errors.New("gateway: no default gateway")

	// ErrNoExternalAddress 网关不支持 NAT-PMP 与 UPnP
	ErrNoExternalAddress = errors.New("gateway: no external address reported")
)

// cgnat 运营商级 NAT 共享地址段（RFC 6598）
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Discoverer 网关查询器
type Discoverer struct {
	timeout time.Duration

	discoverGateway func() (net.IP, error)
	natpmpExternal  func(gw net.IP, timeout time.Duration) (string, error)
	upnpExternal    func(ctx context.Context) (string, error)
}

// New 创建查询器，timeout 为 0 时使用 DefaultTimeout
func New(timeout time.Duration) *Discoverer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Discoverer{
		timeout:         timeout,
		discoverGateway: gateway.DiscoverGateway,
		natpmpExternal:  natpmpExternal,
		upnpExternal:    upnpExternal,
	}
}

// Discover 查询默认网关及其外部地址
//
// 找到网关但网关不报告外部地址时，返回只含 Gateway 的 RouterInfo 与 ErrNoExternalAddress。
func (d *Discoverer) Discover(ctx context.Context) (*types.RouterInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*d.timeout)
	defer cancel()

	gw, err := call(ctx, d.discoverGateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGateway, err)
	}
	info := &types.RouterInfo{Gateway: gw.String()}
	log.Debug("default gateway found", "gateway", info.Gateway)

	pmpCtx, pmpCancel := context.WithTimeout(ctx, d.timeout)
	defer pmpCancel()
	ip, err := call(pmpCtx, func() (string, error) { return d.natpmpExternal(gw, d.timeout) })
	if err == nil {
		info.Method, info.ExternalIP = MethodNATPMP, ip
		log.Info("gateway reported external address", "method", info.Method, "external", ip)
		return info, nil
	}
	log.Debug("NAT-PMP unavailable", "gateway", info.Gateway, "err", err)

	upnpCtx, upnpCancel := context.WithTimeout(ctx, d.timeout)
	defer upnpCancel()
	ip, err = call(upnpCtx, func() (string, error) { return d.upnpExternal(upnpCtx) })
	if err == nil {
		info.Method, info.ExternalIP = MethodUPnP, ip
		log.Info("gateway reported external address", "method", info.Method, "external", ip)
		return info, nil
	}
	log.Debug("UPnP unavailable", "err", err)

	return info, ErrNoExternalAddress
}

// call 在 goroutine 中执行不支持 context 的阻塞调用
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func natpmpExternal(gw net.IP, timeout time.Duration) (string, error) {
	resp, err := natpmp.NewClientWithTimeout(gw, timeout).GetExternalAddress()
	if err != nil {
		return "", err
	}
	return netip.AddrFrom4(resp.ExternalIPAddress).String(), nil
}

// externalIPClient 各类 IGD 连接服务的共同能力
type externalIPClient interface {
	GetExternalIPAddress() (string, error)
}

func appendClients[T externalIPClient](dst []externalIPClient, clients []T) []externalIPClient {
	for _, c := range clients {
		dst = append(dst, c)
	}
	return dst
}

// upnpExternal 按 IGDv2 优先的顺序尝试各类连接服务
func upnpExternal(ctx context.Context) (string, error) {
	var clients []externalIPClient
	if cs, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx); err == nil {
		clients = appendClients(clients, cs)
	}
	if cs, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx); err == nil {
		clients = appendClients(clients, cs)
	}
	if cs, _, err := internetgateway1.NewWANIPConnection1ClientsCtx(ctx); err == nil {
		clients = appendClients(clients, cs)
	}
	if cs, _, err := internetgateway1.NewWANPPPConnection1ClientsCtx(ctx); err == nil {
		clients = appendClients(clients, cs)
	}

	err := errors.New("no IGD connection service found")
	for _, c := range clients {
		ip, e := c.GetExternalIPAddress()
		if e == nil && ip != "" {
			return ip, nil
		}
		if e != nil {
			err = e
		}
	}
	return "", err
}

// Notes 对比网关报告与服务观察到的外部地址，给出多层 NAT 提示
func Notes(info *types.RouterInfo, observed *types.Endpoint) []string {
	if info == nil || info.ExternalIP == "" {
		return nil
	}
	ip, err := netip.ParseAddr(info.ExternalIP)
	if err != nil {
		return []string{fmt.Sprintf("router reported an unparsable external address %q", info.ExternalIP)}
	}
	ip = ip.Unmap()

	var notes []string
	switch {
	case cgnat.Contains(ip):
		notes = append(notes, "router external address "+ip.String()+" is carrier-grade NAT space: another NAT layer upstream")
	case ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified():
		notes = append(notes, "router external address "+ip.String()+" is private: another NAT layer upstream")
	}
	if observed != nil && observed.IsValid() && observed.Addr != ip {
		notes = append(notes, fmt.Sprintf("router external address %s differs from observed %s", ip, observed.Addr))
	}
	return notes
}
