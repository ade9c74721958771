// Package prober 实现单次探测的重试与超时控制
//
// 一次探测由若干次尝试组成。每次尝试：
//  1. 生成新的事务标识并编码请求
//  2. 连续发送 Burst 份（按 Pace 间隔）
//  3. 在截止时间前等待匹配的响应
//
// 等待期间收到的损坏、无关或来源不符的数据报一律丢弃，继续等待剩余时间，
// 不会被当作响应，也不会提前结束等待。只有超时会触发重试；
// 传输错误立即结束探测。
package prober

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-ninat/internal/core/metrics"
	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("nat/prober")

// Config 控制器参数
type Config struct {
	// Timeout 每次尝试的等待时长，0 表示无限等待且只尝试一次
	Timeout time.Duration

	// Attempts 最多尝试次数，至少 1
	Attempts int

	// Burst 每次尝试发送的份数，至少 1
	Burst int

	// Pace 同一次尝试内相邻两份之间的间隔
	Pace time.Duration
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Timeout:  3 * time.Second,
		Attempts: 3,
		Burst:    1,
	}
}

// Probe 一次探测的描述
type Probe struct {
	// Step 步骤名，用于日志和指标
	Step string

	// Target 发送目的端点
	Target types.Endpoint

	// Kind 服务相关的请求种类
	Kind byte

	// Flags 回复位置请求
	Flags codec.Flags

	// ReplyFrom 期望的回复来源，nil 表示不限来源
	ReplyFrom *types.Endpoint
}

// Kind 探测结果种类
type Kind int

const (
	// Answered 收到匹配响应
	Answered Kind = iota
	// NoAnswer 全部尝试超时
	NoAnswer
	// TransportFailed 传输失败或被取消
	TransportFailed
)

// String 返回结果种类的字符串表示
func (k Kind) String() string {
	switch k {
	case Answered:
		return metrics.OutcomeAnswered
	case NoAnswer:
		return metrics.OutcomeNoAnswer
	default:
		return metrics.OutcomeFailed
	}
}

// Outcome 探测结果
type Outcome struct {
	Kind     Kind
	Response codec.Response
	From     types.Endpoint
	Attempts int
	RTT      time.Duration
	Err      error
}

// Controller 在一个 Transport 上顺序执行探测
type Controller struct {
	tr      transport.Transport
	codec   codec.Codec
	ids     *codec.IDGenerator
	cfg     Config
	metrics *metrics.Recorder
}

// New 创建控制器
//
// rec 可以为 nil。
func New(tr transport.Transport, c codec.Codec, ids *codec.IDGenerator, cfg Config, rec *metrics.Recorder) *Controller {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Timeout == 0 {
		cfg.Attempts = 1
	}
	return &Controller{tr: tr, codec: c, ids: ids, cfg: cfg, metrics: rec}
}

// Probe 执行一次探测
func (c *Controller) Probe(ctx context.Context, p Probe) Outcome {
	var out Outcome
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		out = c.attempt(ctx, p)
		out.Attempts = attempt
		if out.Kind != NoAnswer {
			break
		}
		log.Debug("probe timed out", "step", p.Step, "target", p.Target, "attempt", attempt)
	}
	c.metrics.Probe(p.Step, out.Kind.String(), out.RTT)
	return out
}

// SendOnly 发送不期待回复的数据报
func (c *Controller) SendOnly(ctx context.Context, p Probe) error {
	req := codec.Request{ID: c.ids.Next(), Kind: p.Kind, Flags: p.Flags}
	b, err := c.codec.Encode(req)
	if err != nil {
		return err
	}
	return c.send(ctx, p, b)
}

func (c *Controller) attempt(ctx context.Context, p Probe) Outcome {
	req := codec.Request{ID: c.ids.Next(), Kind: p.Kind, Flags: p.Flags}
	b, err := c.codec.Encode(req)
	if err != nil {
		return Outcome{Kind: TransportFailed, Err: err}
	}

	start := time.Now()
	if err := c.send(ctx, p, b); err != nil {
		return c.failed(ctx, err)
	}

	var deadline time.Time
	if c.cfg.Timeout > 0 {
		deadline = start.Add(c.cfg.Timeout)
	}

	for {
		from, data, err := c.tr.Recv(deadline)
		if errors.Is(err, transport.ErrTimeout) {
			return Outcome{Kind: NoAnswer}
		}
		if err != nil {
			return c.failed(ctx, err)
		}

		resp, err := c.codec.Decode(data)
		switch {
		case err != nil:
			c.discard(p, from, metrics.DiscardMalformed, err)
			continue
		case !c.codec.Match(req, resp):
			c.discard(p, from, metrics.DiscardUnmatched, nil)
			continue
		case p.ReplyFrom != nil && from != *p.ReplyFrom && resp.ErrorCode == 0:
			// 错误响应（如 420）由主地址发出，不受来源约束
			c.discard(p, from, metrics.DiscardSource, nil)
			continue
		}

		rtt := time.Since(start)
		log.Debug("probe answered", "step", p.Step, "from", from, "mapped", resp.Mapped, "rtt", rtt)
		return Outcome{Kind: Answered, Response: resp, From: from, RTT: rtt}
	}
}

// send 按 Burst/Pace 发送同一请求
func (c *Controller) send(ctx context.Context, p Probe, b []byte) error {
	var limiter *rate.Limiter
	if c.cfg.Burst > 1 && c.cfg.Pace > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.Pace), 1)
	}
	for i := 0; i < c.cfg.Burst; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := c.tr.Send(p.Target, b); err != nil {
			return err
		}
		c.metrics.Sent(p.Step, 1)
	}
	return nil
}

func (c *Controller) failed(ctx context.Context, err error) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return Outcome{Kind: TransportFailed, Err: err}
}

func (c *Controller) discard(p Probe, from types.Endpoint, reason string, err error) {
	c.metrics.Discarded(reason)
	log.Debug("datagram discarded", "step", p.Step, "from", from, "reason", reason, "err", err)
}
