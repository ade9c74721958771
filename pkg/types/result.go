package types

import "time"

// Observation 单次探测的观察记录
type Observation struct {
	// Step 探测步骤名称，如 "E1"、"change-port"
	Step string `json:"step"`

	// Target 探测目的端点
	Target Endpoint `json:"target"`

	// Answered 是否收到匹配响应
	Answered bool `json:"answered"`

	// Mapped 服务观察到的外部端点（仅 Answered 时有效）
	Mapped *Endpoint `json:"mapped,omitempty"`

	// From 响应的来源端点
	From *Endpoint `json:"from,omitempty"`

	// Attempts 实际尝试次数
	Attempts int `json:"attempts"`

	// ErrorCode 服务返回的错误码（如 STUN 420），0 表示无
	ErrorCode int `json:"error_code,omitempty"`
}

// RouterInfo 本地网关自报告的信息
type RouterInfo struct {
	// Gateway 默认网关地址
	Gateway string `json:"gateway"`

	// Method 获取外部地址的协议，"nat-pmp" 或 "upnp"
	Method string `json:"method,omitempty"`

	// ExternalIP 网关报告的外部 IP
	ExternalIP string `json:"external_ip,omitempty"`
}

// Result 一次 NAT 分类的结果
//
// 每次运行都重新测量，结果不会跨进程缓存。
type Result struct {
	// RunID 本次运行标识
	RunID string `json:"run_id"`

	// Service 使用的穿透辅助服务
	Service string `json:"service"`

	// Proxied 是否经由 SOCKS5 代理
	Proxied bool `json:"proxied"`

	// Status 分类状态
	Status Status `json:"status"`

	// Reason Indeterminate 的原因
	Reason string `json:"reason,omitempty"`

	Mapping   Mapping   `json:"mapping"`
	Filtering Filtering `json:"filtering"`

	// External 第一次探测观察到的外部端点
	External *Endpoint `json:"external,omitempty"`

	// PortAllocation 端口分配可预测性（映射非端点无关时测量）
	PortAllocation PortAllocation `json:"port_allocation"`

	// NATType 主机分级
	NATType NATType `json:"nat_type"`

	// Router 网关信息（仅直连模式且启用时）
	Router *RouterInfo `json:"router,omitempty"`

	// Observations 全部探测记录，按执行顺序
	Observations []Observation `json:"observations"`

	// Notes 附加说明
	Notes []string `json:"notes,omitempty"`

	// Duration 运行耗时
	Duration time.Duration `json:"duration_ns"`
}

// AddNote 追加说明
func (r *Result) AddNote(note string) {
	r.Notes = append(r.Notes, note)
}

// Indeterminate 将结果标记为无法确定
func (r *Result) Indeterminate(reason string) {
	r.Status = StatusIndeterminate
	if r.Reason == "" {
		r.Reason = reason
	}
}

// DeriveNATType 根据映射、过滤和端口分配推导主机分级
func (r *Result) DeriveNATType() NATType {
	switch {
	case r.Status == StatusBlocked:
		return NATTypeF
	case r.Mapping == MappingEndpointIndependent:
		switch r.Filtering {
		case FilteringEndpointIndependent, FilteringAddressDependent:
			return NATTypeA
		case FilteringAddressAndPortDependent:
			return NATTypeB
		}
	case r.Mapping == MappingAddressDependent || r.Mapping == MappingAddressAndPortDependent:
		switch r.PortAllocation {
		case PortAllocationPredictable:
			return NATTypeC
		case PortAllocationRandom:
			return NATTypeD
		}
	}
	return NATTypeUnknown
}
