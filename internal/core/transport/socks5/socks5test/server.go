// Package socks5test 提供测试用的 SOCKS5 UDP ASSOCIATE 代理
package socks5test

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dep2p/go-ninat/internal/core/transport/socks5"
	"github.com/dep2p/go-ninat/pkg/types"
)

// Server 回环地址上的最小 SOCKS5 代理，只支持 UDP ASSOCIATE
type Server struct {
	// Auth 要求的凭据，nil 表示 NoAuth
	Auth *socks5.Auth

	// SelectMethod 覆盖方法选择，返回值原样写回客户端
	SelectMethod func(offered []byte) byte

	// Reply UDP ASSOCIATE 的 REP 字段，0 表示成功
	Reply byte

	// UnspecifiedBind 回复 0.0.0.0 作为中继地址
	UnspecifiedBind bool

	ln    net.Listener
	relay *net.UDPConn
	out   *net.UDPConn

	mu     sync.Mutex
	client *net.UDPAddr
	ctrls  []net.Conn

	associates atomic.Int32
	authOK     atomic.Int32
	wg         sync.WaitGroup
}

// Start 启动代理，测试结束时自动关闭
func Start(tb testing.TB, s *Server) *Server {
	tb.Helper()
	var err error
	if s.ln, err = net.Listen("tcp4", "127.0.0.1:0"); err != nil {
		tb.Fatalf("socks5test: listen: %v", err)
	}
	if s.relay, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}); err != nil {
		tb.Fatalf("socks5test: relay: %v", err)
	}
	if s.out, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}); err != nil {
		tb.Fatalf("socks5test: outbound: %v", err)
	}

	s.wg.Add(3)
	go s.accept()
	go s.forward()
	go s.backward()
	tb.Cleanup(s.Close)
	return s
}

// Addr 代理 TCP 地址
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Outbound 代理对外发送使用的端点，即服务端观察到的来源
func (s *Server) Outbound() types.Endpoint {
	ep, _ := types.EndpointFromUDPAddr(s.out.LocalAddr().(*net.UDPAddr))
	return ep
}

// Associates 收到的 UDP ASSOCIATE 请求数
func (s *Server) Associates() int { return int(s.associates.Load()) }

// Authenticated 认证成功次数
func (s *Server) Authenticated() int { return int(s.authOK.Load()) }

// DropControl 关闭全部控制连接，模拟代理撤销关联
func (s *Server) DropControl() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.ctrls {
		c.Close()
	}
	s.ctrls = nil
}

// InjectRaw 从中继向客户端发送原始数据报
func (s *Server) InjectRaw(b []byte) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil {
		_, _ = s.relay.WriteToUDP(b, client)
	}
}

// Close 停止代理
func (s *Server) Close() {
	s.ln.Close()
	s.relay.Close()
	s.out.Close()
	s.DropControl()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.ctrls = append(s.ctrls, c)
		s.mu.Unlock()
		go s.serve(c)
	}
}

func (s *Server) serve(c net.Conn) {
	defer c.Close()

	var hdr [2]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil || hdr[0] != 0x05 {
		return
	}
	offered := make([]byte, hdr[1])
	if _, err := io.ReadFull(c, offered); err != nil {
		return
	}

	method := s.choose(offered)
	if _, err := c.Write([]byte{0x05, method}); err != nil || method == 0xFF {
		return
	}
	if method == 0x02 && !s.checkAuth(c) {
		return
	}

	var req [10]byte
	if _, err := io.ReadFull(c, req[:]); err != nil || req[1] != 0x03 {
		return
	}
	s.associates.Add(1)

	if s.Reply != 0 {
		_, _ = c.Write([]byte{0x05, s.Reply, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	port := s.relay.LocalAddr().(*net.UDPAddr).Port
	ip := []byte{127, 0, 0, 1}
	if s.UnspecifiedBind {
		ip = []byte{0, 0, 0, 0}
	}
	rep := append([]byte{0x05, 0x00, 0x00, 0x01}, ip...)
	rep = append(rep, byte(port>>8), byte(port))
	if _, err := c.Write(rep); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, c)
}

func (s *Server) choose(offered []byte) byte {
	if s.SelectMethod != nil {
		return s.SelectMethod(offered)
	}
	want := byte(0x00)
	if s.Auth != nil {
		want = 0x02
	}
	if bytes.IndexByte(offered, want) >= 0 {
		return want
	}
	return 0xFF
}

func (s *Server) checkAuth(c net.Conn) bool {
	read := func() ([]byte, bool) {
		var l [1]byte
		if _, err := io.ReadFull(c, l[:]); err != nil {
			return nil, false
		}
		b := make([]byte, l[0])
		_, err := io.ReadFull(c, b)
		return b, err == nil
	}

	var ver [1]byte
	if _, err := io.ReadFull(c, ver[:]); err != nil || ver[0] != 0x01 {
		return false
	}
	user, ok := read()
	if !ok {
		return false
	}
	pass, ok := read()
	if !ok {
		return false
	}

	if s.Auth == nil || string(user) != s.Auth.Username || string(pass) != s.Auth.Password {
		_, _ = c.Write([]byte{0x01, 0x01})
		return false
	}
	s.authOK.Add(1)
	_, err := c.Write([]byte{0x01, 0x00})
	return err == nil
}

// forward 中继 -> 目标
func (s *Server) forward() {
	defer s.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, from, err := s.relay.ReadFromUDP(buf)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.client = from
		s.mu.Unlock()

		to, payload, err := socks5.ParseHeader(buf[:n])
		if err != nil {
			continue
		}
		_, _ = s.out.WriteToUDPAddrPort(payload, to.AddrPort())
	}
}

// backward 目标 -> 中继 -> 客户端
func (s *Server) backward() {
	defer s.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, from, err := s.out.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		s.InjectRaw(socks5.AppendHeader(nil, types.EndpointFromAddrPort(from), buf[:n]))
	}
}
