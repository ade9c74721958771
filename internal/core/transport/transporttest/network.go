// Package transporttest 提供内存中的 NAT 模拟网络
//
// Network 模拟一台 NAT 及其后方的若干服务端点，行为由 NAT 字段控制：
// 映射方式决定外部端口如何分配，过滤方式决定哪些来源的回包可以进入。
// 测试据此驱动分类器，不依赖真实网络。
package transporttest

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/pkg/types"
)

// ReplyFunc 服务端从 src 向客户端外部端点回包
type ReplyFunc func(src types.Endpoint, b []byte)

// Handler 服务端点收到数据报时调用，from 为 NAT 外部端点
type Handler func(from types.Endpoint, b []byte, reply ReplyFunc)

// NAT 模拟的 NAT 行为
type NAT struct {
	Mapping   types.Mapping
	Filtering types.Filtering

	// External 外部 IP，默认 203.0.113.1
	External netip.Addr

	// RandomPorts 非线性分配外部端口，使不同套接字间的端口增量不一致
	RandomPorts bool

	// Blocked 丢弃全部出站数据报
	Blocked bool
}

// Network 内存网络
type Network struct {
	nat NAT

	mu       sync.Mutex
	handlers map[types.Endpoint]Handler
	mappings map[mappingKey]types.Endpoint
	permits  map[types.Endpoint]map[types.Endpoint]struct{}
	inbox    map[types.Endpoint]*Transport
	allocs   int
	nextID   int
	sent     []Datagram
}

// Datagram 经过 NAT 的出站数据报记录
type Datagram struct {
	Local int
	To    types.Endpoint
	Data  []byte
}

type mappingKey struct {
	local int
	dest  types.Endpoint
}

// NewNetwork 创建网络
func NewNetwork(nat NAT) *Network {
	if !nat.External.IsValid() {
		nat.External = netip.MustParseAddr("203.0.113.1")
	}
	return &Network{
		nat:      nat,
		handlers: make(map[types.Endpoint]Handler),
		mappings: make(map[mappingKey]types.Endpoint),
		permits:  make(map[types.Endpoint]map[types.Endpoint]struct{}),
		inbox:    make(map[types.Endpoint]*Transport),
	}
}

// Handle 注册服务端点
func (n *Network) Handle(ep types.Endpoint, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[ep] = h
}

// Sent 返回出站数据报记录
func (n *Network) Sent() []Datagram {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Datagram(nil), n.sent...)
}

// Proxied 实现 transport.Opener
func (n *Network) Proxied() bool { return false }

// Open 实现 transport.Opener，每次调用相当于 NAT 内新开一个套接字
func (n *Network) Open(context.Context) (transport.Transport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	return &Transport{
		net:    n,
		id:     n.nextID,
		queue:  make(chan packet, 64),
		closed: make(chan struct{}),
	}, nil
}

// external 返回出站映射，必要时分配
func (n *Network) external(local int, to types.Endpoint) types.Endpoint {
	key := mappingKey{local: local}
	switch n.nat.Mapping {
	case types.MappingAddressDependent:
		key.dest = types.Endpoint{Addr: to.Addr}
	case types.MappingAddressAndPortDependent:
		key.dest = to
	}
	if ext, ok := n.mappings[key]; ok {
		return ext
	}
	ext := types.NewEndpoint(n.nat.External, n.allocate())
	n.mappings[key] = ext
	return ext
}

// allocate 顺序分配或按二次函数打散
func (n *Network) allocate() uint16 {
	i := n.allocs
	n.allocs++
	if n.nat.RandomPorts {
		return uint16(40000 + (i*i*7919)%20000)
	}
	return uint16(40000 + i)
}

// admits 判断来自 src 的回包能否进入 ext
func (n *Network) admits(ext, src types.Endpoint) bool {
	permits := n.permits[ext]
	switch n.nat.Filtering {
	case types.FilteringEndpointIndependent:
		return len(permits) > 0
	case types.FilteringAddressDependent:
		for p := range permits {
			if p.Addr == src.Addr {
				return true
			}
		}
		return false
	default:
		_, ok := permits[src]
		return ok
	}
}

func (n *Network) send(t *Transport, to types.Endpoint, b []byte) {
	n.mu.Lock()
	n.sent = append(n.sent, Datagram{Local: t.id, To: to, Data: append([]byte(nil), b...)})
	if n.nat.Blocked {
		n.mu.Unlock()
		return
	}
	ext := n.external(t.id, to)
	if n.permits[ext] == nil {
		n.permits[ext] = make(map[types.Endpoint]struct{})
	}
	n.permits[ext][to] = struct{}{}
	n.inbox[ext] = t
	h := n.handlers[to]
	n.mu.Unlock()

	if h == nil {
		return
	}
	h(ext, append([]byte(nil), b...), func(src types.Endpoint, reply []byte) {
		n.deliver(ext, src, reply)
	})
}

func (n *Network) deliver(ext, src types.Endpoint, b []byte) {
	n.mu.Lock()
	t := n.inbox[ext]
	ok := t != nil && n.admits(ext, src)
	n.mu.Unlock()
	if !ok {
		return
	}
	select {
	case t.queue <- packet{from: src, data: append([]byte(nil), b...)}:
	case <-t.closed:
	default:
	}
}

type packet struct {
	from types.Endpoint
	data []byte
}

// Transport 内存网络中的一个套接字
type Transport struct {
	net    *Network
	id     int
	queue  chan packet
	closed chan struct{}
	once   sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// Send 实现 transport.Transport
func (t *Transport) Send(to types.Endpoint, b []byte) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}
	t.net.send(t, to, b)
	return nil
}

// Recv 实现 transport.Transport
func (t *Transport) Recv(deadline time.Time) (types.Endpoint, []byte, error) {
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case p := <-t.queue:
		return p.from, p.data, nil
	case <-timeout:
		return types.Endpoint{}, nil, transport.ErrTimeout
	case <-t.closed:
		return types.Endpoint{}, nil, transport.ErrClosed
	}
}

// Inject 绕过 NAT 直接放入一个数据报
func (t *Transport) Inject(from types.Endpoint, b []byte) {
	t.queue <- packet{from: from, data: b}
}

// LocalAddr 实现 transport.Transport
func (t *Transport) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 50000 + t.id}
}

// Close 实现 transport.Transport
func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}
