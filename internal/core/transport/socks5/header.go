package socks5

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/dep2p/go-ninat/pkg/types"
)

// UDP 请求头: RSV(2) FRAG(1) ATYP(1) DST.ADDR DST.PORT(2) DATA

// AppendHeader 在 dst 后追加 to 的 UDP 请求头与负载
func AppendHeader(dst []byte, to types.Endpoint, payload []byte) []byte {
	dst = append(dst, 0x00, 0x00, 0x00)
	if to.Addr.Is4() {
		ip := to.Addr.As4()
		dst = append(dst, atypIPv4)
		dst = append(dst, ip[:]...)
	} else {
		ip := to.Addr.As16()
		dst = append(dst, atypIPv6)
		dst = append(dst, ip[:]...)
	}
	dst = binary.BigEndian.AppendUint16(dst, to.Port)
	return append(dst, payload...)
}

// ParseHeader 解析中继数据报，返回来源端点与负载
//
// 负载与 b 共享底层数组。
func ParseHeader(b []byte) (types.Endpoint, []byte, error) {
	if len(b) < 4 {
		return types.Endpoint{}, nil, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}
	if b[2] != 0x00 {
		return types.Endpoint{}, nil, fmt.Errorf("%w: frag %d", ErrFragmented, b[2])
	}

	var (
		addr netip.Addr
		rest []byte
	)
	switch b[3] {
	case atypIPv4:
		if len(b) < 4+4+2 {
			return types.Endpoint{}, nil, fmt.Errorf("%w: short ipv4 header", ErrMalformedHeader)
		}
		addr = netip.AddrFrom4([4]byte(b[4:8]))
		rest = b[8:]
	case atypIPv6:
		if len(b) < 4+16+2 {
			return types.Endpoint{}, nil, fmt.Errorf("%w: short ipv6 header", ErrMalformedHeader)
		}
		addr = netip.AddrFrom16([16]byte(b[4:20]))
		rest = b[20:]
	case atypDomain:
		return types.Endpoint{}, nil, ErrDomainSource
	default:
		return types.Endpoint{}, nil, fmt.Errorf("%w: address type 0x%02x", ErrMalformedHeader, b[3])
	}
	return types.NewEndpoint(addr, binary.BigEndian.Uint16(rest[:2])), rest[2:], nil
}
