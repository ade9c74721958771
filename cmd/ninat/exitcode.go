package main

import (
	"errors"

	"github.com/dep2p/go-ninat/config"
	"github.com/dep2p/go-ninat/internal/core/nat/classifier"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/core/transport/socks5"
	"github.com/dep2p/go-ninat/pkg/types"
)

// 进程退出码
const (
	exitOK               = 0
	exitError            = 1
	exitConfig           = 2
	exitProxyUnreachable = 3
	exitProxyAuth        = 4
	exitProxyHandshake   = 5
	exitBlocked          = 6
	exitTransport        = 7
	exitResolve          = 8
)

// exitCode 把运行结果映射为退出码
//
// Indeterminate 是完成的运行，返回 0。
func exitCode(res *types.Result, err error) int {
	var (
		probeErr *classifier.ProbeError
		ioErr    *transport.Error
	)
	switch {
	case err == nil && res != nil && res.Status == types.StatusBlocked:
		return exitBlocked
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalidConfig):
		return exitConfig
	case errors.Is(err, socks5.ErrProxyUnreachable):
		return exitProxyUnreachable
	case socks5.IsAuthError(err):
		return exitProxyAuth
	case socks5.IsHandshakeError(err):
		return exitProxyHandshake
	case errors.Is(err, traversal.ErrResolve):
		return exitResolve
	case errors.As(err, &probeErr), errors.As(err, &ioErr), errors.Is(err, transport.ErrClosed):
		return exitTransport
	default:
		return exitError
	}
}
