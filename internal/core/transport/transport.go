package transport

import (
	"context"
	"net"
	"time"

	"github.com/dep2p/go-ninat/pkg/types"
)

// MaxDatagramSize 接收缓冲区大小
const MaxDatagramSize = 64 * 1024

// Transport 探测数据报的收发通道
//
// 一个 Transport 对应一个本地出口（套接字或 SOCKS5 关联），
// 同一运行内的全部探测共用它，保证 NAT 看到的是同一个内部端点。
// 不保证并发安全，调用方顺序使用。
type Transport interface {
	// Send 发送一个数据报
	Send(to types.Endpoint, b []byte) error

	// Recv 接收一个数据报，返回来源端点与负载
	//
	// deadline 为零值时无限等待。
	Recv(deadline time.Time) (types.Endpoint, []byte, error)

	// LocalAddr 本地地址；SOCKS5 模式下为连向中继的本地 UDP 地址
	LocalAddr() net.Addr

	// Close 释放全部资源
	Close() error
}

// Opener 打开新的 Transport
type Opener interface {
	// Open 打开一个 Transport，调用方负责 Close
	Open(ctx context.Context) (Transport, error)

	// Proxied 是否经由代理
	Proxied() bool
}

// OpenerFunc 函数适配器
type OpenerFunc func(ctx context.Context) (Transport, error)

// Open 实现 Opener
func (f OpenerFunc) Open(ctx context.Context) (Transport, error) { return f(ctx) }

// Proxied 实现 Opener
func (OpenerFunc) Proxied() bool { return false }
