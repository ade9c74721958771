// Package socks5 经 SOCKS5 UDP ASSOCIATE 中继收发数据报
//
// 握手流程（RFC 1928 / RFC 1929）：
//  1. TCP 连接代理
//  2. 方法协商，可选用户名/密码认证
//  3. UDP ASSOCIATE 0.0.0.0:0，得到中继端点
//
// TCP 控制连接在关联期间保持打开，代理关闭它即表示关联失效，
// 此后 Recv 返回 transport.ErrClosed。
package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("transport/socks5")

// Opener 打开经代理中继的传输
type Opener struct {
	// Address 代理地址 host:port
	Address string

	// Auth 可选凭据
	Auth *Auth

	// HandshakeTimeout 限制 TCP 连接与握手的总时长，0 表示不限制
	HandshakeTimeout time.Duration
}

var _ transport.Opener = (*Opener)(nil)

// Proxied 实现 transport.Opener
func (o *Opener) Proxied() bool { return true }

// Open 完成握手并建立中继 UDP 套接字
//
// 任一步失败都会释放已建立的连接。
func (o *Opener) Open(ctx context.Context) (transport.Transport, error) {
	if o.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.HandshakeTimeout)
		defer cancel()
	}

	var d net.Dialer
	ctrl, err := d.DialContext(ctx, "tcp", o.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProxyUnreachable, o.Address, err)
	}
	log.Debug("proxy connected", "proxy", o.Address, "local", ctrl.LocalAddr())

	relay, err := o.handshake(ctx, ctrl)
	if err != nil {
		ctrl.Close()
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, relay.UDPAddr())
	if err != nil {
		ctrl.Close()
		return nil, &transport.Error{Op: "dial relay", Cause: err}
	}
	log.Debug("udp associate established", "relay", relay, "local", conn.LocalAddr())

	return newTransport(ctrl, conn, relay), nil
}

// handshake 在控制连接上完成协商，期间遵守 ctx 的截止时间与取消
func (o *Opener) handshake(ctx context.Context, ctrl net.Conn) (types.Endpoint, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = ctrl.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ctrl.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := greet(ctrl, o.Auth); err != nil {
		return types.Endpoint{}, o.contextErr(ctx, err)
	}
	relay, err := associate(ctrl)
	if err != nil {
		return types.Endpoint{}, o.contextErr(ctx, err)
	}
	if !stop() {
		return types.Endpoint{}, o.contextErr(ctx, ctx.Err())
	}
	_ = ctrl.SetDeadline(time.Time{})

	if relay.Addr.IsUnspecified() {
		if ra, ok := ctrl.RemoteAddr().(*net.TCPAddr); ok {
			relay = types.NewEndpoint(ra.AddrPort().Addr(), relay.Port)
		}
	}
	return relay, nil
}

// contextErr 握手因超时或取消中断时给出更明确的错误
func (o *Opener) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &HandshakeError{Step: "handshake with " + o.Address, Cause: ctxErr}
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &HandshakeError{Step: "handshake with " + o.Address, Cause: context.DeadlineExceeded}
	}
	return err
}

// Transport 经代理中继的传输
type Transport struct {
	ctrl  net.Conn
	conn  *net.UDPConn
	relay types.Endpoint
	buf   []byte

	ctrlLost  atomic.Bool
	watchDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Transport = (*Transport)(nil)

func newTransport(ctrl net.Conn, conn *net.UDPConn, relay types.Endpoint) *Transport {
	t := &Transport{
		ctrl:      ctrl,
		conn:      conn,
		relay:     relay,
		buf:       make([]byte, transport.MaxDatagramSize),
		watchDone: make(chan struct{}),
	}
	go t.watch()
	return t
}

// watch 读取控制连接直到断开，断开后关闭中继套接字以唤醒 Recv
func (t *Transport) watch() {
	defer close(t.watchDone)
	_, err := io.Copy(io.Discard, t.ctrl)
	t.ctrlLost.Store(true)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug("proxy control connection failed", "err", err)
	} else {
		log.Debug("proxy control connection closed")
	}
	_ = t.conn.Close()
}

// Relay 返回中继端点
func (t *Transport) Relay() types.Endpoint { return t.relay }

// Send 加 UDP 请求头后发往中继
func (t *Transport) Send(to types.Endpoint, b []byte) error {
	if t.ctrlLost.Load() {
		return transport.ErrClosed
	}
	pkt := AppendHeader(make([]byte, 0, 22+len(b)), to, b)
	_, err := t.conn.Write(pkt)
	return transport.WrapIO("send", err)
}

// Recv 接收中继数据报并去掉请求头
//
// 分片、头部损坏或来源为域名的数据报直接丢弃，继续等待。
func (t *Transport) Recv(deadline time.Time) (types.Endpoint, []byte, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return types.Endpoint{}, nil, t.recvErr("set deadline", err)
	}
	for {
		n, err := t.conn.Read(t.buf)
		if err != nil {
			return types.Endpoint{}, nil, t.recvErr("recv", err)
		}
		from, payload, err := ParseHeader(t.buf[:n])
		if err != nil {
			log.Debug("relay datagram dropped", "err", err, "len", n)
			continue
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return from, out, nil
	}
}

func (t *Transport) recvErr(op string, err error) error {
	if t.ctrlLost.Load() {
		return transport.ErrClosed
	}
	return transport.WrapIO(op, err)
}

// LocalAddr 连向中继的本地 UDP 地址
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close 关闭控制连接与中继套接字
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		err := multierr.Combine(ignoreClosed(t.ctrl.Close()), ignoreClosed(t.conn.Close()))
		<-t.watchDone
		t.closeErr = err
	})
	return t.closeErr
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
