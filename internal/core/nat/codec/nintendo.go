package codec

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/dep2p/go-ninat/pkg/types"
)

// Nintendo 请求种类
const (
	// KindSendOnly 只发送，服务不回复
	KindSendOnly byte = 0x00
	// KindEcho 原路回显观察到的源端点
	KindEcho byte = 0x65
	// KindChangePort 从接收端口以外的端口回复
	KindChangePort byte = 0x66
	// KindEchoOther 由第二台服务器回显
	KindEchoOther byte = 0x67
)

// NintendoSize 请求与响应的固定长度
const NintendoSize = 16

// Nintendo 的 16 字节格式
//
//	请求: 00 00 00 KIND + 12 字节 0
//	响应: payload[4] reserved[2] port[2] remote_ip[4] local_ip[4]
//
// payload 第 4 字节回显请求种类，port 与 remote_ip 为观察到的外部端点（大端序）。
// 事务标识不在线上传输，匹配只依据种类，来源端点由控制器另行校验。
// 因此重试时无法区分上一次尝试迟到的同种类回复与本次回复。
type Nintendo struct{}

var _ Codec = Nintendo{}

// Name 格式名称
func (Nintendo) Name() string { return "nintendo" }

// Encode 编码请求
func (Nintendo) Encode(req Request) ([]byte, error) {
	if req.Flags != 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFlags, req.Flags)
	}
	b := make([]byte, NintendoSize)
	b[3] = req.Kind
	return b, nil
}

// Decode 解码响应，长度必须恰好为 16
func (Nintendo) Decode(b []byte) (Response, error) {
	if len(b) != NintendoSize {
		return Response{}, fmt.Errorf("%w: length %d", ErrMalformed, len(b))
	}
	return Response{
		Kind:   b[3],
		Mapped: types.NewEndpoint(netip.AddrFrom4([4]byte(b[8:12])), binary.BigEndian.Uint16(b[6:8])),
		Local:  netip.AddrFrom4([4]byte(b[12:16])),
	}, nil
}

// Match 种类一致即视为回答
func (Nintendo) Match(req Request, resp Response) bool {
	return req.Kind == resp.Kind
}

// EncodeResponse 编码响应
func (Nintendo) EncodeResponse(resp Response) ([]byte, error) {
	if !resp.Mapped.Addr.Is4() {
		return nil, fmt.Errorf("codec: nintendo response needs an IPv4 endpoint, got %s", resp.Mapped)
	}
	b := make([]byte, NintendoSize)
	b[3] = resp.Kind
	binary.BigEndian.PutUint16(b[6:8], resp.Mapped.Port)
	ip := resp.Mapped.Addr.As4()
	copy(b[8:12], ip[:])
	if resp.Local.Is4() {
		local := resp.Local.As4()
		copy(b[12:16], local[:])
	}
	return b, nil
}
