package types

import "fmt"

// ============================================================================
//                              Mapping - 映射行为
// ============================================================================

// Mapping NAT 映射行为（RFC 4787 术语）
type Mapping int

const (
	// MappingUnknown 未能确定
	MappingUnknown Mapping = iota
	// MappingEndpointIndependent 同一本地端点映射到同一外部端点，与目的地无关
	MappingEndpointIndependent
	// MappingAddressDependent 外部端点随目的 IP 变化
	MappingAddressDependent
	// MappingAddressAndPortDependent 外部端点随目的 IP 或端口变化
	MappingAddressAndPortDependent
)

// String 返回映射行为的字符串表示
func (m Mapping) String() string {
	switch m {
	case MappingEndpointIndependent:
		return "endpoint-independent"
	case MappingAddressDependent:
		return "address-dependent"
	case MappingAddressAndPortDependent:
		return "address-and-port-dependent"
	default:
		return "unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (m Mapping) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ============================================================================
//                              Filtering - 过滤行为
// ============================================================================

// Filtering NAT 入站过滤行为
type Filtering int

const (
	// FilteringUnknown 未能确定或服务不支持
	FilteringUnknown Filtering = iota
	// FilteringEndpointIndependent 任意来源均可回包
	FilteringEndpointIndependent
	// FilteringAddressDependent 只接受曾发往的 IP
	FilteringAddressDependent
	// FilteringAddressAndPortDependent 只接受曾发往的 IP:端口
	FilteringAddressAndPortDependent
)

// String 返回过滤行为的字符串表示
func (f Filtering) String() string {
	switch f {
	case FilteringEndpointIndependent:
		return "endpoint-independent"
	case FilteringAddressDependent:
		return "address-dependent"
	case FilteringAddressAndPortDependent:
		return "address-and-port-dependent"
	default:
		return "unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (f Filtering) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ============================================================================
//                              Status - 分类状态
// ============================================================================

// Status 一次分类运行的最终状态
type Status int

const (
	// StatusClassified 已得出结论
	StatusClassified Status = iota
	// StatusIndeterminate 证据不足，Reason 给出原因
	StatusIndeterminate
	// StatusBlocked 所有探测均无响应，UDP 很可能被阻断
	StatusBlocked
)

// String 返回状态的字符串表示
func (s Status) String() string {
	switch s {
	case StatusClassified:
		return "classified"
	case StatusIndeterminate:
		return "indeterminate"
	case StatusBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ============================================================================
//                              PortAllocation - 端口分配
// ============================================================================

// PortAllocation 外部端口分配是否可预测
type PortAllocation int

const (
	// PortAllocationUnknown 未测量
	PortAllocationUnknown PortAllocation = iota
	// PortAllocationPredictable 两个本地套接字的端口增量一致
	PortAllocationPredictable
	// PortAllocationRandom 端口增量不一致
	PortAllocationRandom
)

// String 返回端口分配方式的字符串表示
func (p PortAllocation) String() string {
	switch p {
	case PortAllocationPredictable:
		return "predictable"
	case PortAllocationRandom:
		return "random"
	default:
		return "unknown"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (p PortAllocation) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ============================================================================
//                              NATType - 主机 NAT 类型
// ============================================================================

// NATType 游戏主机使用的 NAT 类型分级（A 最宽松，F 表示不可用）
type NATType int

const (
	// NATTypeUnknown 无法映射到主机分级
	NATTypeUnknown NATType = iota
	// NATTypeA 端点无关映射，过滤宽松
	NATTypeA
	// NATTypeB 端点无关映射，端口相关过滤
	NATTypeB
	// NATTypeC 端点相关映射，端口分配可预测
	NATTypeC
	// NATTypeD 端点相关映射，端口分配随机
	NATTypeD
	// NATTypeF 无法通信
	NATTypeF
)

// String 返回 Nintendo 分级字母
func (n NATType) String() string {
	switch n {
	case NATTypeA:
		return "A"
	case NATTypeB:
		return "B"
	case NATTypeC:
		return "C"
	case NATTypeD:
		return "D"
	case NATTypeF:
		return "F"
	default:
		return "?"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (n NATType) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// Nintendo 返回 Nintendo Switch 的显示文本
func (n NATType) Nintendo() string { return n.String() }

// Sony 返回 PlayStation 的 NAT 类型编号
func (n NATType) Sony() string {
	switch n {
	case NATTypeA:
		return "1"
	case NATTypeB:
		return "2"
	case NATTypeC, NATTypeD:
		return "3"
	default:
		return "-"
	}
}

// Microsoft 返回 Xbox 的 NAT 类型名称
func (n NATType) Microsoft() string {
	switch n {
	case NATTypeA:
		return "Open"
	case NATTypeB:
		return "Moderate"
	case NATTypeC, NATTypeD:
		return "Strict"
	case NATTypeF:
		return "Unavailable"
	default:
		return "-"
	}
}
