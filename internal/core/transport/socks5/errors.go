package socks5

import (
	"errors"
	"fmt"
)

var (
	// ErrProxyUnreachable 无法建立到代理的 TCP 连接
	ErrProxyUnreachable = errors.New("socks5: proxy unreachable")

	// ErrNoAcceptableMethod 代理拒绝了全部认证方法（0xFF）
	ErrNoAcceptableMethod = errors.New("socks5: no acceptable authentication method")

	// ErrAuthMethodUnsupported 代理选择了客户端未提供的方法
	ErrAuthMethodUnsupported = errors.New("socks5: proxy selected an authentication method that was not offered")

	// ErrAuthFailed 用户名/密码认证失败
	ErrAuthFailed = errors.New("socks5: authentication failed")

	// ErrBadVersion 代理回复的版本号不对
	ErrBadVersion = errors.New("socks5: unexpected protocol version")

	// ErrMalformedReply 代理回复无法解析
	ErrMalformedReply = errors.New("socks5: malformed reply")

	// ErrMalformedHeader UDP 中继数据报头无法解析
	ErrMalformedHeader = errors.New("socks5: malformed udp header")

	// ErrFragmented 收到分片数据报（FRAG != 0），不支持重组
	ErrFragmented = errors.New("socks5: fragmented udp datagram")

	// ErrDomainSource 中继数据报的来源是域名，无法作为端点比较
	ErrDomainSource = errors.New("socks5: udp datagram with domain-name source")
)

// CommandRejectedError 代理拒绝 UDP ASSOCIATE
type CommandRejectedError struct {
	Code byte
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("socks5: udp associate rejected: %s (0x%02x)", replyText(e.Code), e.Code)
}

// HandshakeError 握手某一步的 I/O 失败
type HandshakeError struct {
	Step  string
	Cause error
}

func (e *HandshakeError) Error() string {
	return "socks5 " + e.Step + ": " + e.Cause.Error()
}

// Unwrap 解包错误
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}

// IsHandshakeError 判断是否为认证以外的握手失败
func IsHandshakeError(err error) bool {
	var he *HandshakeError
	var ce *CommandRejectedError
	return errors.As(err, &he) ||
		errors.As(err, &ce) ||
		errors.Is(err, ErrBadVersion) ||
		errors.Is(err, ErrMalformedReply)
}

// replyText RFC 1928 REP 字段含义
func replyText(rep byte) string {
	switch rep {
	case 0x00:
		return "succeeded"
	case 0x01:
		return "general SOCKS server failure"
	case 0x02:
		return "connection not allowed by ruleset"
	case 0x03:
		return "network unreachable"
	case 0x04:
		return "host unreachable"
	case 0x05:
		return "connection refused"
	case 0x06:
		return "TTL expired"
	case 0x07:
		return "command not supported"
	case 0x08:
		return "address type not supported"
	default:
		return "unassigned reply code"
	}
}
