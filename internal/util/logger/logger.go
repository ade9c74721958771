// Package logger 提供 ninat 的子系统日志
//
// 基于标准库 log/slog：
//   - 每个子系统一个 Logger，带 subsystem 属性
//   - 级别和格式由 NINAT_LOG_LEVEL / NINAT_LOG_FORMAT 控制
//   - 日志写到 stderr，stdout 只留给报告
//
// 使用示例:
//
//	var log = logger.Logger("nat/prober")
//
//	log.Debug("probe sent", "target", target, "attempt", n)
//
// 环境变量配置:
//
//	# socks5 为 debug，其余为 warn
//	NINAT_LOG_LEVEL=transport/socks5=debug,warn
//	NINAT_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// levels 各子系统的级别变量，派生 Logger 共享同一个
	levels sync.Map // map[string]*slog.LevelVar
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例，可以放在包级变量中。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	lv := new(slog.LevelVar)
	lv.Set(cfg.LevelForSubsystem(subsystem))
	if actual, loaded := levels.LoadOrStore(subsystem, lv); loaded {
		lv = actual.(*slog.LevelVar)
	}

	l := slog.New(newHandler(subsystem, lv, cfg.Format))
	actual, _ := loggers.LoadOrStore(subsystem, l)
	return actual.(*slog.Logger)
}

// SetLevel 调整单个子系统的级别
func SetLevel(subsystem string, level slog.Level) {
	if lv, ok := levels.Load(subsystem); ok {
		lv.(*slog.LevelVar).Set(level)
	}
}

// SetGlobalLevel 调整所有已创建子系统的级别，并作为之后新建子系统的默认级别
//
// 命令行 --verbose 通过它切到 debug。
func SetGlobalLevel(level slog.Level) {
	ConfigFromEnv().setDefault(level)
	levels.Range(func(_, value any) bool {
		value.(*slog.LevelVar).Set(level)
		return true
	})
}

// Discard 返回丢弃所有日志的 Logger，测试用
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 切换日志输出目标
//
// 已创建的 Logger 同样生效。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
