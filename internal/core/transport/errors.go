package transport

import (
	"errors"
	"net"
	"os"
)

var (
	// ErrTimeout 截止时间前未收到数据报
	ErrTimeout = errors.New("transport: receive timeout")

	// ErrClosed 传输已关闭，或 SOCKS5 控制连接已断开
	ErrClosed = errors.New("transport: closed")
)

// Error 底层 I/O 错误
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return "transport " + e.Op + ": " + e.Cause.Error()
}

// Unwrap 解包错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// WrapIO 将 net 包返回的错误归类
//
// 超时映射为 ErrTimeout，关闭映射为 ErrClosed，其余包装为 *Error。
func WrapIO(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	default:
		return &Error{Op: op, Cause: err}
	}
}

// IsFatal 判断错误是否应终止整个运行
//
// 超时不致命，由重试控制器处理。
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrTimeout)
}
