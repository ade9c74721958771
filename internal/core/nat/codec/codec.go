// Package codec 实现探测报文的编解码
//
// 一个 Codec 对应一种穿透辅助服务的线格式。所有 Codec 满足：
//   - Decode(Encode(r)) 还原 r 中该格式能表达的全部字段
//   - Decode 对任意输入都不会 panic，无法解析时返回 ErrMalformed
//   - Match 判断一个响应是否回答了某个请求，控制器据此丢弃无关数据报
package codec

import (
	"errors"
	"net/netip"

	"github.com/dep2p/go-ninat/pkg/types"
)

var (
	// ErrMalformed 数据报无法解析为该格式的响应
	ErrMalformed = errors.New("codec: malformed datagram")

	// ErrUnsupportedFlags 该格式不支持请求中的标志
	ErrUnsupportedFlags = errors.New("codec: unsupported request flags")
)

// Flags 请求服务从别处回复的标志
type Flags uint8

const (
	// FlagChangeAddress 从另一个 IP 回复
	FlagChangeAddress Flags = 1 << iota
	// FlagChangePort 从同一 IP 的另一个端口回复
	FlagChangePort
)

// Has 判断是否包含全部给定标志
func (f Flags) Has(o Flags) bool { return f&o == o }

// String 返回标志的可读形式
func (f Flags) String() string {
	switch f {
	case 0:
		return "none"
	case FlagChangeAddress:
		return "change-address"
	case FlagChangePort:
		return "change-port"
	case FlagChangeAddress | FlagChangePort:
		return "change-address+port"
	default:
		return "invalid"
	}
}

// Request 单次尝试的探测请求
type Request struct {
	// ID 事务标识，每次尝试重新生成
	ID TxID

	// Kind 服务相关的请求种类，STUN 不使用
	Kind byte

	// Flags 回复位置请求
	Flags Flags
}

// Response 解码后的探测响应，构造后不再修改
type Response struct {
	ID   TxID
	Kind byte

	// Mapped 服务观察到的源端点，即 NAT 外部端点
	Mapped types.Endpoint

	// Other 服务通告的备用端点（STUN OTHER-ADDRESS / CHANGED-ADDRESS）
	Other *types.Endpoint

	// Local 响应携带的附加 IPv4 字段，仅 Nintendo 格式有，语义未公开
	Local netip.Addr

	// ErrorCode 服务返回的错误码，成功响应为 0
	ErrorCode int
}

// Codec 探测报文编解码器
type Codec interface {
	// Name 格式名称
	Name() string

	// Encode 编码请求
	Encode(req Request) ([]byte, error)

	// Decode 解码响应，失败返回 ErrMalformed
	Decode(b []byte) (Response, error)

	// Match 判断 resp 是否回答了 req
	Match(req Request, resp Response) bool

	// EncodeResponse 编码响应，用于模拟服务端
	EncodeResponse(resp Response) ([]byte, error)
}
