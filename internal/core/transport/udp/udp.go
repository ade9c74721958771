// Package udp 直连 UDP 传输
package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("transport/udp")

// Opener 打开直连 UDP 传输
type Opener struct {
	// LocalAddr 绑定地址，为空时绑定 0.0.0.0:0
	LocalAddr string
}

var _ transport.Opener = (*Opener)(nil)

// Open 绑定一个新的 UDP 套接字
func (o *Opener) Open(ctx context.Context) (transport.Transport, error) {
	addr := o.LocalAddr
	if addr == "" {
		addr = "0.0.0.0:0"
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, &transport.Error{Op: "listen", Cause: err}
	}
	log.Debug("udp socket bound", "local", pc.LocalAddr())
	return New(pc.(*net.UDPConn)), nil
}

// Proxied 实现 transport.Opener
func (o *Opener) Proxied() bool { return false }

// Transport 基于单个 *net.UDPConn
type Transport struct {
	conn *net.UDPConn
	buf  []byte

	closeOnce sync.Once
	closeErr  error
}

var _ transport.Transport = (*Transport)(nil)

// New 包装已有连接，Transport 接管其生命周期
func New(conn *net.UDPConn) *Transport {
	return &Transport{conn: conn, buf: make([]byte, transport.MaxDatagramSize)}
}

// Send 实现 transport.Transport
func (t *Transport) Send(to types.Endpoint, b []byte) error {
	_, err := t.conn.WriteToUDPAddrPort(b, to.AddrPort())
	return transport.WrapIO("send", err)
}

// Recv 实现 transport.Transport
func (t *Transport) Recv(deadline time.Time) (types.Endpoint, []byte, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return types.Endpoint{}, nil, transport.WrapIO("set deadline", err)
	}
	n, from, err := t.conn.ReadFromUDPAddrPort(t.buf)
	if err != nil {
		return types.Endpoint{}, nil, transport.WrapIO("recv", err)
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return types.EndpointFromAddrPort(from), out, nil
}

// LocalAddr 实现 transport.Transport
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close 实现 transport.Transport
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
