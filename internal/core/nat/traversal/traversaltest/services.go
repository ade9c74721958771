// Package traversaltest 在内存网络上模拟穿透辅助服务
package traversaltest

import (
	"net"
	"net/netip"
	"testing"

	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport/transporttest"
	"github.com/dep2p/go-ninat/pkg/types"
)

// 默认服务器地址
var (
	Server1 = netip.MustParseAddr("198.51.100.1")
	Server2 = netip.MustParseAddr("198.51.100.2")
)

// Nintendo 在 n 上注册两台 Nintendo 服务器，返回指向它们的服务
func Nintendo(n *transporttest.Network) *traversal.Nintendo {
	s1 := types.NewEndpoint(Server1, traversal.PortEcho)
	s2 := types.NewEndpoint(Server2, traversal.PortEcho)
	alt := types.NewEndpoint(Server1, traversal.PortAlternate)

	n.Handle(s1, func(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
		if len(b) != codec.NintendoSize {
			return
		}
		switch b[3] {
		case codec.KindEcho:
			reply(s1, nintendoResponse(codec.KindEcho, from))
		case codec.KindChangePort:
			reply(alt, nintendoResponse(codec.KindChangePort, from))
		}
	})
	n.Handle(s2, func(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
		if len(b) == codec.NintendoSize && b[3] == codec.KindEchoOther {
			reply(s2, nintendoResponse(codec.KindEchoOther, from))
		}
	})

	return &traversal.Nintendo{Server1: Server1.String(), Server2: Server2.String()}
}

func nintendoResponse(kind byte, mapped types.Endpoint) []byte {
	b, _ := codec.Nintendo{}.EncodeResponse(codec.Response{Kind: kind, Mapped: mapped})
	return b
}

// STUNOptions STUN 模拟参数
type STUNOptions struct {
	// Port / AltPort 主端口与备用端口，默认 3478 / 3479
	Port, AltPort uint16

	// NoChangeRequest 对 CHANGE-REQUEST 返回 420
	NoChangeRequest bool

	// NoOtherAddress 不通告 OTHER-ADDRESS，只监听主端点
	NoOtherAddress bool

	// RejectAt 该端点对普通 Binding 请求返回 500
	RejectAt *types.Endpoint
}

// STUN 在 n 上注册 RFC 5780 服务器的四个端点
func STUN(n *transporttest.Network, opts STUNOptions) *traversal.STUN {
	opts.defaults()
	srv := stunServer{opts: opts, addr1: Server1, addr2: Server2}

	for _, local := range srv.endpoints() {
		local := local
		n.Handle(local, func(from types.Endpoint, b []byte, reply transporttest.ReplyFunc) {
			if src, out, ok := srv.respond(local, from, b); ok {
				reply(src, out)
			}
		})
	}
	return &traversal.STUN{Server: types.NewEndpoint(Server1, opts.Port).String()}
}

// ServeSTUN 在回环地址 127.0.0.1 与 127.0.0.2 上以真实 UDP 套接字提供同样的服务
//
// 端口由系统分配，opts 中的端口被忽略。无法绑定 127.0.0.2 的平台上跳过测试。
func ServeSTUN(tb testing.TB, opts STUNOptions) *traversal.STUN {
	tb.Helper()
	addr1 := netip.MustParseAddr("127.0.0.1")
	addr2 := netip.MustParseAddr("127.0.0.2")

	conns := make(map[types.Endpoint]*net.UDPConn)
	bind := func(addr netip.Addr, port uint16) (uint16, error) {
		c, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, port)))
		if err != nil {
			return 0, err
		}
		tb.Cleanup(func() { c.Close() })
		ep, _ := types.EndpointFromUDPAddr(c.LocalAddr().(*net.UDPAddr))
		conns[ep] = c
		return ep.Port, nil
	}

	var err error
	if opts.Port, err = bind(addr1, 0); err != nil {
		tb.Fatalf("traversaltest: listen: %v", err)
	}
	if !opts.NoOtherAddress {
		if opts.AltPort, err = bind(addr1, 0); err != nil {
			tb.Fatalf("traversaltest: listen: %v", err)
		}
		for _, port := range []uint16{opts.Port, opts.AltPort} {
			if _, err := bind(addr2, port); err != nil {
				tb.Skipf("traversaltest: second loopback address unavailable: %v", err)
			}
		}
	}

	srv := stunServer{opts: opts, addr1: addr1, addr2: addr2}
	for local, c := range conns {
		local, c := local, c
		go func() {
			buf := make([]byte, 1500)
			for {
				n, from, err := c.ReadFromUDPAddrPort(buf)
				if err != nil {
					return
				}
				src, out, ok := srv.respond(local, types.EndpointFromAddrPort(from), buf[:n])
				if !ok {
					continue
				}
				if sc, found := conns[src]; found {
					_, _ = sc.WriteToUDPAddrPort(out, from)
				}
			}
		}()
	}

	return &traversal.STUN{Server: types.NewEndpoint(addr1, opts.Port).String()}
}

func (o *STUNOptions) defaults() {
	if o.Port == 0 {
		o.Port = 3478
	}
	if o.AltPort == 0 {
		o.AltPort = 3479
	}
}

// stunServer 与承载网络无关的应答逻辑
type stunServer struct {
	opts         STUNOptions
	addr1, addr2 netip.Addr
}

func (s stunServer) endpoints() []types.Endpoint {
	eps := []types.Endpoint{types.NewEndpoint(s.addr1, s.opts.Port)}
	if !s.opts.NoOtherAddress {
		eps = append(eps,
			types.NewEndpoint(s.addr1, s.opts.AltPort),
			types.NewEndpoint(s.addr2, s.opts.Port),
			types.NewEndpoint(s.addr2, s.opts.AltPort))
	}
	return eps
}

// respond 返回回复的来源端点与编码后的响应
func (s stunServer) respond(local, from types.Endpoint, b []byte) (types.Endpoint, []byte, bool) {
	id, flags, err := codec.ChangeRequestFlags(b)
	if err != nil {
		return types.Endpoint{}, nil, false
	}
	resp := codec.Response{ID: id, Mapped: from}
	if !s.opts.NoOtherAddress {
		other := types.NewEndpoint(s.addr2, s.opts.AltPort)
		resp.Other = &other
	}
	src := local
	switch {
	case flags != 0 && (s.opts.NoChangeRequest || s.opts.NoOtherAddress):
		resp = codec.Response{ID: id, ErrorCode: codec.CodeUnknownAttribute}
	case flags == 0 && s.opts.RejectAt != nil && *s.opts.RejectAt == local:
		resp = codec.Response{ID: id, ErrorCode: 500}
	default:
		if flags.Has(codec.FlagChangeAddress) {
			src.Addr = flip(src.Addr, s.addr1, s.addr2)
		}
		if flags.Has(codec.FlagChangePort) {
			src.Port = flipPort(src.Port, s.opts.Port, s.opts.AltPort)
		}
	}
	out, err := codec.STUN{}.EncodeResponse(resp)
	if err != nil {
		return types.Endpoint{}, nil, false
	}
	return src, out, true
}

func flip(a, x, y netip.Addr) netip.Addr {
	if a == x {
		return y
	}
	return x
}

func flipPort(p, x, y uint16) uint16 {
	if p == x {
		return y
	}
	return x
}
