// Package classifier 实现 NAT 映射与过滤行为分类
//
// 分类流程（每一步在结论明确时提前结束）：
//  1. 预热发送，然后探测 E1；E1 与 E3 都无响应时为 Blocked
//  2. 请求服务从别处回复，判定过滤行为
//  3. 探测 E2（同 IP 不同端口，服务提供时）
//  4. 探测 E3（不同 IP），判定映射行为
//  5. 映射非端点无关时，用第二个套接字测量端口分配是否可预测
//
// 全部探测在同一个 Transport 上顺序进行。传输失败立即终止运行。
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-ninat/internal/core/metrics"
	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/internal/core/nat/traversal"
	"github.com/dep2p/go-ninat/internal/core/transport"
	"github.com/dep2p/go-ninat/internal/util/logger"
	"github.com/dep2p/go-ninat/pkg/types"
)

var log = logger.Logger("nat/classifier")

// Config 分类器配置
type Config struct {
	Probe prober.Config

	// Predict 映射非端点无关时测量端口分配
	Predict bool
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{Probe: prober.DefaultConfig(), Predict: true}
}

// Classifier NAT 分类器
type Classifier struct {
	service traversal.Service
	opener  transport.Opener
	cfg     Config
	metrics *metrics.Recorder
}

// New 创建分类器
//
// rec 可以为 nil。
func New(svc traversal.Service, opener transport.Opener, cfg Config, rec *metrics.Recorder) *Classifier {
	return &Classifier{service: svc, opener: opener, cfg: cfg, metrics: rec}
}

// run 单次分类的状态
type run struct {
	ctl *prober.Controller
	res *types.Result
}

// probe 执行探测并记录观察，传输失败时返回错误
func (r *run) probe(ctx context.Context, p prober.Probe) (prober.Outcome, error) {
	out := r.ctl.Probe(ctx, p)
	obs := types.Observation{
		Step:     p.Step,
		Target:   p.Target,
		Answered: out.Kind == prober.Answered,
		Attempts: out.Attempts,
	}
	if out.Kind == prober.Answered {
		from := out.From
		obs.From = &from
		obs.ErrorCode = out.Response.ErrorCode
		if out.Response.ErrorCode == 0 {
			mapped := out.Response.Mapped
			obs.Mapped = &mapped
		}
	}
	r.res.Observations = append(r.res.Observations, obs)

	if out.Kind == prober.TransportFailed {
		return out, &ProbeError{Step: p.Step, Cause: out.Err}
	}
	return out, nil
}

// optional 执行可选探测，服务不提供时返回 Offered=false
func (r *run) optional(ctx context.Context, p *prober.Probe) (observation, error) {
	if p == nil {
		return observation{}, nil
	}
	out, err := r.probe(ctx, *p)
	if err != nil {
		return observation{}, err
	}
	return toObservation(out), nil
}

func toObservation(out prober.Outcome) observation {
	o := observation{Offered: true}
	if out.Kind != prober.Answered {
		return o
	}
	o.Answered = true
	if out.Response.ErrorCode != 0 {
		o.Rejected = true
		return o
	}
	o.Mapped = out.Response.Mapped
	return o
}

// Classify 执行一次完整分类
//
// 只有传输失败、代理握手失败或解析失败才返回错误；
// Blocked 与 Indeterminate 都是正常结果。
func (c *Classifier) Classify(ctx context.Context) (*types.Result, error) {
	start := time.Now()
	ids := codec.NewIDGenerator()
	res := &types.Result{
		RunID:   ids.RunID(),
		Service: c.service.Name(),
		Proxied: c.opener.Proxied(),
	}
	log.Info("classification started", "run", res.RunID, "service", res.Service, "proxied", res.Proxied)

	if err := c.service.Resolve(ctx); err != nil {
		return nil, err
	}

	tr, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	stop := context.AfterFunc(ctx, func() { tr.Close() })
	defer stop()

	r := &run{ctl: prober.New(tr, c.service.Codec(), ids, c.cfg.Probe, c.metrics), res: res}
	plan := c.service.Plan(nil)

	for _, p := range plan.Prime {
		if err := r.ctl.SendOnly(ctx, p); err != nil {
			return nil, contextErr(ctx, &ProbeError{Step: p.Step, Cause: err})
		}
	}

	e1, err := r.probe(ctx, plan.Primary)
	if err != nil {
		return nil, contextErr(ctx, err)
	}
	if e1.Kind != prober.Answered || e1.Response.ErrorCode != 0 {
		if err := c.primaryUnanswered(ctx, r, plan, e1); err != nil {
			return nil, contextErr(ctx, err)
		}
		return c.finish(res, start), nil
	}

	ext1 := e1.Response.Mapped
	res.External = &ext1
	plan = c.service.Plan(&e1.Response)

	// 过滤探测先于 E2/E3：此时 NAT 只为 E1 的目的地开过口
	if err := c.filtering(ctx, r, plan); err != nil {
		return nil, contextErr(ctx, err)
	}

	e2, err := r.optional(ctx, plan.SameAddress)
	if err != nil {
		return nil, contextErr(ctx, err)
	}

	var e3 observation
	if !(e2.Answered && !e2.Rejected && e2.Mapped != ext1) {
		if e3, err = r.optional(ctx, plan.OtherAddress); err != nil {
			return nil, contextErr(ctx, err)
		}
	}

	mapping, reason := decideMapping(ext1, e2, e3)
	res.Mapping = mapping
	if mapping == types.MappingUnknown {
		res.Indeterminate(reason)
	}
	if mapping == types.MappingAddressAndPortDependent && !e2.Offered {
		res.AddNote("address and port dependence not separated: service has no second port on the primary address")
	}

	if c.cfg.Predict && (mapping == types.MappingAddressDependent || mapping == types.MappingAddressAndPortDependent) {
		// E2 已证明端口相关时 E3 被跳过，改用 E2 的目的地
		other, otherObs := plan.OtherAddress, e3
		if !e3.Answered || e3.Rejected {
			other, otherObs = plan.SameAddress, e2
		}
		alloc, err := c.predict(ctx, ids, res, plan.Primary, other, ext1, otherObs)
		if err != nil {
			return nil, contextErr(ctx, err)
		}
		res.PortAllocation = alloc
	}

	return c.finish(res, start), nil
}

// primaryUnanswered E1 无响应时，用 E3 区分 Blocked 与 Indeterminate
func (c *Classifier) primaryUnanswered(ctx context.Context, r *run, plan traversal.Plan, e1 prober.Outcome) error {
	if e1.Kind == prober.Answered {
		r.res.Indeterminate(fmt.Sprintf("primary endpoint returned error %d", e1.Response.ErrorCode))
		return nil
	}
	e3, err := r.optional(ctx, plan.OtherAddress)
	if err != nil {
		return err
	}
	if e3.Answered {
		if !e3.Rejected {
			ext := e3.Mapped
			r.res.External = &ext
		}
		r.res.Indeterminate("primary endpoint did not answer")
		return nil
	}
	r.res.Status = types.StatusBlocked
	return nil
}

// filtering 执行过滤探测
func (c *Classifier) filtering(ctx context.Context, r *run, plan traversal.Plan) error {
	changeAddr, err := r.optional(ctx, plan.ChangeAddress)
	if err != nil {
		return err
	}
	var changePort observation
	if !(changeAddr.Answered && !changeAddr.Rejected) {
		if changePort, err = r.optional(ctx, plan.ChangePort); err != nil {
			return err
		}
	}

	filtering, reason := decideFiltering(changeAddr, changePort)
	r.res.Filtering = filtering
	if filtering == types.FilteringUnknown {
		r.res.Indeterminate(reason)
	}
	if filtering == types.FilteringAddressDependent && (!changeAddr.Offered || changeAddr.Rejected) {
		r.res.AddNote("filtering is at most address-dependent: service cannot reply from another address")
	}
	return nil
}

// finish 推导主机分级并收尾
func (c *Classifier) finish(res *types.Result, start time.Time) *types.Result {
	if res.Status == types.StatusClassified && (res.Mapping == types.MappingUnknown || res.Filtering == types.FilteringUnknown) {
		res.Indeterminate("incomplete observations")
	}
	res.NATType = res.DeriveNATType()
	res.Duration = time.Since(start)
	c.metrics.Classified(res)
	log.Info("classification finished",
		"run", res.RunID,
		"status", res.Status,
		"mapping", res.Mapping,
		"filtering", res.Filtering,
		"nat_type", res.NATType,
		"duration", res.Duration)
	return res
}

func (c *Classifier) open(ctx context.Context) (transport.Transport, error) {
	tr, err := c.opener.Open(ctx)
	if err != nil {
		return nil, contextErr(ctx, err)
	}
	log.Debug("transport opened", "local", tr.LocalAddr())
	return tr, nil
}

// contextErr 运行被取消时以取消原因为准
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
