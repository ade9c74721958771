package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dep2p/go-ninat/pkg/types"
)

// 丢弃原因
const (
	DiscardMalformed = "malformed"
	DiscardUnmatched = "unmatched"
	DiscardSource    = "source"
)

// 探测结果标签
const (
	OutcomeAnswered = "answered"
	OutcomeNoAnswer = "no_answer"
	OutcomeFailed   = "transport_failed"
)

// Recorder 一次运行的探测指标
//
// 使用独立的 Registry，不污染全局默认注册表。nil *Recorder 的所有方法都是空操作。
type Recorder struct {
	reg *prometheus.Registry

	datagramsSent *prometheus.CounterVec
	probes        *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	rtt           prometheus.Histogram
	classified    *prometheus.GaugeVec
}

// NewRecorder 创建指标记录器
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		datagramsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ninat",
			Subsystem: "probe",
			Name:      "datagrams_sent_total",
		}, []string{"step"}),
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ninat",
			Subsystem: "probe",
			Name:      "probes_total",
		}, []string{"step", "outcome"}),
		discarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ninat",
			Subsystem: "probe",
			Name:      "datagrams_discarded_total",
		}, []string{"reason"}),
		rtt: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ninat",
			Subsystem: "probe",
			Name:      "rtt_seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		classified: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ninat",
			Subsystem: "classifier",
			Name:      "result_info",
		}, []string{"status", "mapping", "filtering", "nat_type"}),
	}
}

// Registry 返回底层注册表
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Sent 记录发出的数据报
func (r *Recorder) Sent(step string, n int) {
	if r == nil {
		return
	}
	r.datagramsSent.WithLabelValues(step).Add(float64(n))
}

// Probe 记录一次探测的结果
func (r *Recorder) Probe(step, outcome string, rtt time.Duration) {
	if r == nil {
		return
	}
	r.probes.WithLabelValues(step, outcome).Inc()
	if outcome == OutcomeAnswered {
		r.rtt.Observe(rtt.Seconds())
	}
}

// Discarded 记录被丢弃的数据报
func (r *Recorder) Discarded(reason string) {
	if r == nil {
		return
	}
	r.discarded.WithLabelValues(reason).Inc()
}

// Classified 记录最终分类
func (r *Recorder) Classified(res *types.Result) {
	if r == nil || res == nil {
		return
	}
	r.classified.WithLabelValues(
		res.Status.String(), res.Mapping.String(), res.Filtering.String(), res.NATType.String(),
	).Set(1)
}

// WriteTextfile 以 node_exporter textfile 格式写入文件
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
