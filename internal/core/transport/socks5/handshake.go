package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/dep2p/go-ninat/pkg/types"
)

// 协议常量（RFC 1928 / RFC 1929）
const (
	version5        byte = 0x05
	authVersion     byte = 0x01
	methodNoAuth    byte = 0x00
	methodUserPass  byte = 0x02
	methodNone      byte = 0xFF
	cmdUDPAssociate byte = 0x03

	atypIPv4   byte = 0x01
	atypDomain byte = 0x03
	atypIPv6   byte = 0x04
)

// Auth 用户名/密码凭据，仅在握手时使用
type Auth struct {
	Username string
	Password string
}

// greet 发送方法协商并在需要时完成用户名/密码认证
//
// 总是提供 NoAuth；有凭据时额外提供 UsernamePassword。
func greet(rw io.ReadWriter, auth *Auth) error {
	methods := []byte{methodNoAuth}
	if auth != nil {
		methods = append(methods, methodUserPass)
	}
	req := append([]byte{version5, byte(len(methods))}, methods...)
	if _, err := rw.Write(req); err != nil {
		return &HandshakeError{Step: "write greeting", Cause: err}
	}

	var sel [2]byte
	if _, err := io.ReadFull(rw, sel[:]); err != nil {
		return &HandshakeError{Step: "read method selection", Cause: err}
	}
	if sel[0] != version5 {
		return fmt.Errorf("%w: 0x%02x in method selection", ErrBadVersion, sel[0])
	}

	switch sel[1] {
	case methodNoAuth:
		return nil
	case methodUserPass:
		if auth == nil {
			return fmt.Errorf("%w: 0x%02x", ErrAuthMethodUnsupported, sel[1])
		}
		return authenticate(rw, auth)
	case methodNone:
		return ErrNoAcceptableMethod
	default:
		return fmt.Errorf("%w: 0x%02x", ErrAuthMethodUnsupported, sel[1])
	}
}

// authenticate RFC 1929 子协商: 01 ULEN UNAME PLEN PASSWD
func authenticate(rw io.ReadWriter, auth *Auth) error {
	if len(auth.Username) == 0 || len(auth.Username) > 255 || len(auth.Password) == 0 || len(auth.Password) > 255 {
		return fmt.Errorf("%w: username and password must be 1-255 bytes", ErrAuthFailed)
	}
	req := make([]byte, 0, 3+len(auth.Username)+len(auth.Password))
	req = append(req, authVersion, byte(len(auth.Username)))
	req = append(req, auth.Username...)
	req = append(req, byte(len(auth.Password)))
	req = append(req, auth.Password...)
	if _, err := rw.Write(req); err != nil {
		return &HandshakeError{Step: "write credentials", Cause: err}
	}

	var rep [2]byte
	if _, err := io.ReadFull(rw, rep[:]); err != nil {
		return &HandshakeError{Step: "read auth status", Cause: err}
	}
	if rep[0] != authVersion {
		return fmt.Errorf("%w: 0x%02x in auth reply", ErrBadVersion, rep[0])
	}
	if rep[1] != 0x00 {
		return ErrAuthFailed
	}
	return nil
}

// associate 发送 UDP ASSOCIATE 0.0.0.0:0，返回代理给出的中继端点
//
// 中继地址为未指定地址时由调用方替换为代理自身地址。
func associate(rw io.ReadWriter) (types.Endpoint, error) {
	req := []byte{version5, cmdUDPAssociate, 0x00, atypIPv4, 0, 0, 0, 0, 0, 0}
	if _, err := rw.Write(req); err != nil {
		return types.Endpoint{}, &HandshakeError{Step: "write udp associate", Cause: err}
	}

	var hdr [4]byte
	if _, err := io.ReadFull(rw, hdr[:]); err != nil {
		return types.Endpoint{}, &HandshakeError{Step: "read udp associate reply", Cause: err}
	}
	if hdr[0] != version5 {
		return types.Endpoint{}, fmt.Errorf("%w: 0x%02x in udp associate reply", ErrBadVersion, hdr[0])
	}
	if hdr[1] != 0x00 {
		return types.Endpoint{}, &CommandRejectedError{Code: hdr[1]}
	}

	var addr netip.Addr
	switch hdr[3] {
	case atypIPv4:
		var b [4]byte
		if _, err := io.ReadFull(rw, b[:]); err != nil {
			return types.Endpoint{}, &HandshakeError{Step: "read relay address", Cause: err}
		}
		addr = netip.AddrFrom4(b)
	case atypIPv6:
		var b [16]byte
		if _, err := io.ReadFull(rw, b[:]); err != nil {
			return types.Endpoint{}, &HandshakeError{Step: "read relay address", Cause: err}
		}
		addr = netip.AddrFrom16(b)
	default:
		return types.Endpoint{}, fmt.Errorf("%w: relay address type 0x%02x", ErrMalformedReply, hdr[3])
	}

	var port [2]byte
	if _, err := io.ReadFull(rw, port[:]); err != nil {
		return types.Endpoint{}, &HandshakeError{Step: "read relay port", Cause: err}
	}
	relay := types.NewEndpoint(addr, binary.BigEndian.Uint16(port[:]))
	if relay.Port == 0 {
		return types.Endpoint{}, fmt.Errorf("%w: relay port 0", ErrMalformedReply)
	}
	return relay, nil
}

// IsAuthError 判断是否为认证相关的握手失败
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrNoAcceptableMethod) ||
		errors.Is(err, ErrAuthMethodUnsupported)
}
