package traversal

import (
	"context"

	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/pkg/types"
)

// Nintendo 服务默认主机
const (
	NintendoServer1 = "nncs1-lp1.n.n.srv.nintendo.net"
	NintendoServer2 = "nncs2-lp1.n.n.srv.nintendo.net"
)

// Nintendo 服务端口
const (
	// PortSendOnly 只收不回
	PortSendOnly uint16 = 33334
	// PortEcho 回显与换端口请求
	PortEcho uint16 = 10025
	// PortAlternate 换端口请求的回复来源
	PortAlternate uint16 = 50920
)

// Nintendo 主机联机测试服务
//
// 两台服务器：S1 提供回显和“从 50920 端口回复”，S2 提供回显。
// 没有同 IP 不同端口的回显，也不能从另一个 IP 回复。
type Nintendo struct {
	// Server1 / Server2 主机名或 IPv4 字面量，为空时使用官方服务器
	Server1  string
	Server2  string
	Resolver Resolver

	s1, s2 types.Endpoint
}

var _ Service = (*Nintendo)(nil)

// Name 服务名
func (n *Nintendo) Name() string { return "nintendo" }

// Codec 线格式
func (n *Nintendo) Codec() codec.Codec { return codec.Nintendo{} }

// Resolve 解析两台服务器
func (n *Nintendo) Resolve(ctx context.Context) error {
	h1, h2 := n.Server1, n.Server2
	if h1 == "" {
		h1 = NintendoServer1
	}
	if h2 == "" {
		h2 = NintendoServer2
	}
	ip1, err := lookup4(ctx, n.Resolver, h1)
	if err != nil {
		return err
	}
	ip2, err := lookup4(ctx, n.Resolver, h2)
	if err != nil {
		return err
	}
	n.s1 = types.NewEndpoint(ip1, PortEcho)
	n.s2 = types.NewEndpoint(ip2, PortEcho)
	return nil
}

// Plan 计划与 E1 的结果无关
func (n *Nintendo) Plan(*codec.Response) Plan {
	alt := types.NewEndpoint(n.s1.Addr, PortAlternate)
	return Plan{
		Prime: []prober.Probe{{
			Step:   "prime",
			Target: types.NewEndpoint(n.s1.Addr, PortSendOnly),
			Kind:   codec.KindSendOnly,
		}},
		Primary: prober.Probe{Step: "E1", Target: n.s1, Kind: codec.KindEcho, ReplyFrom: ptr(n.s1)},
		OtherAddress: &prober.Probe{
			Step: "E3", Target: n.s2, Kind: codec.KindEchoOther, ReplyFrom: ptr(n.s2),
		},
		ChangePort: &prober.Probe{
			Step: "change-port", Target: n.s1, Kind: codec.KindChangePort, ReplyFrom: &alt,
		},
	}
}
