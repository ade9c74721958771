package traversal

import (
	"context"

	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/pkg/types"
)

// DefaultSTUNServer 默认 STUN 服务器
const DefaultSTUNServer = "stun.l.google.com:19302"

// STUN RFC 5780 行为发现
//
// 服务器在 E1 响应中通告 OTHER-ADDRESS（或 RFC 3489 的 CHANGED-ADDRESS）时，
// 可以得到完整的计划；否则只有配置了 Alternate 才能测映射，且无法测过滤。
type STUN struct {
	// Server 主服务器 host:port
	Server string

	// Alternate 另一个 IP 上的服务器 host:port，可选
	Alternate string

	Resolver Resolver

	primary   types.Endpoint
	alternate *types.Endpoint
}

var _ Service = (*STUN)(nil)

// Name 服务名
func (s *STUN) Name() string { return "stun" }

// Codec 线格式
func (s *STUN) Codec() codec.Codec { return codec.STUN{} }

// Resolve 解析主服务器与备用服务器
func (s *STUN) Resolve(ctx context.Context) error {
	server := s.Server
	if server == "" {
		server = DefaultSTUNServer
	}
	ep, err := lookupEndpoint(ctx, s.Resolver, server)
	if err != nil {
		return err
	}
	s.primary = ep
	if s.Alternate != "" {
		alt, err := lookupEndpoint(ctx, s.Resolver, s.Alternate)
		if err != nil {
			return err
		}
		s.alternate = &alt
	}
	return nil
}

// Plan 根据 E1 通告的备用地址补全计划
func (s *STUN) Plan(first *codec.Response) Plan {
	p := Plan{Primary: prober.Probe{Step: "E1", Target: s.primary}}
	if s.alternate != nil {
		p.OtherAddress = &prober.Probe{Step: "E3", Target: *s.alternate}
	}
	if first == nil || first.Other == nil || first.Other.Addr == s.primary.Addr {
		return p
	}

	other := *first.Other
	if s.alternate == nil {
		p.OtherAddress = &prober.Probe{
			Step:   "E3",
			Target: types.NewEndpoint(other.Addr, s.primary.Port),
		}
	}
	if other.Port != s.primary.Port {
		p.SameAddress = &prober.Probe{
			Step:   "E2",
			Target: types.NewEndpoint(s.primary.Addr, other.Port),
		}
		p.ChangePort = &prober.Probe{
			Step:      "change-port",
			Target:    s.primary,
			Flags:     codec.FlagChangePort,
			ReplyFrom: ptr(types.NewEndpoint(s.primary.Addr, other.Port)),
		}
	}
	p.ChangeAddress = &prober.Probe{
		Step:      "change-address",
		Target:    s.primary,
		Flags:     codec.FlagChangeAddress | codec.FlagChangePort,
		ReplyFrom: ptr(other),
	}
	return p
}
