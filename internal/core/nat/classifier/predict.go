package classifier

import (
	"context"

	"github.com/dep2p/go-ninat/internal/core/nat/codec"
	"github.com/dep2p/go-ninat/internal/core/nat/prober"
	"github.com/dep2p/go-ninat/pkg/types"
)

// predict 在第二个套接字上重复主端点与另一目的地的探测，比较两个套接字的端口增量
//
// 第二个 Transport 独立打开并在返回前关闭，不影响第一个套接字的映射。
func (c *Classifier) predict(ctx context.Context, ids *codec.IDGenerator, res *types.Result,
	primary prober.Probe, other *prober.Probe, ext1 types.Endpoint, first observation) (types.PortAllocation, error) {
	if other == nil || !first.Answered || first.Rejected {
		res.AddNote("port allocation not measured: no second destination mapping")
		return types.PortAllocationUnknown, nil
	}

	tr, err := c.open(ctx)
	if err != nil {
		return types.PortAllocationUnknown, err
	}
	defer tr.Close()
	stop := context.AfterFunc(ctx, func() { tr.Close() })
	defer stop()

	r := &run{ctl: prober.New(tr, c.service.Codec(), ids, c.cfg.Probe, c.metrics), res: res}

	primary.Step = "predict-" + primary.Step
	second := *other
	second.Step = "predict-" + second.Step

	p1, err := r.probe(ctx, primary)
	if err != nil {
		return types.PortAllocationUnknown, err
	}
	p3, err := r.probe(ctx, second)
	if err != nil {
		return types.PortAllocationUnknown, err
	}
	o1, o3 := toObservation(p1), toObservation(p3)
	if !o1.Answered || o1.Rejected || !o3.Answered || o3.Rejected {
		res.AddNote("port allocation not measured: second socket got no answer")
		return types.PortAllocationUnknown, nil
	}

	alloc := decideAllocation(ext1, first.Mapped, o1.Mapped, o3.Mapped)
	log.Debug("port allocation measured",
		"first", ext1, "first_other", first.Mapped,
		"second", o1.Mapped, "second_other", o3.Mapped,
		"allocation", alloc)
	return alloc, nil
}
