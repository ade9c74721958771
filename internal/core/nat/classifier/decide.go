package classifier

import "github.com/dep2p/go-ninat/pkg/types"

// observation 一个探测步骤的结果摘要
type observation struct {
	Offered  bool
	Answered bool
	Mapped   types.Endpoint

	// Rejected 服务以错误码回复，视为该步骤不受支持
	Rejected bool
}

// decideMapping 根据 E1/E2/E3 判定映射行为
//
// 规则：
//   - E2 与 E1 不同：端口相关，AddressAndPortDependent
//   - E3 与 E1 相同：EndpointIndependent
//   - E3 不同且 E2 与 E1 相同：AddressDependent
//   - E3 不同且服务不提供 E2：AddressAndPortDependent
//   - 其余情况无法判断
//
// 同端点不同端口观察到不同映射时永远不会得到 EndpointIndependent。
func decideMapping(e1 types.Endpoint, e2, e3 observation) (types.Mapping, string) {
	e2Mapped := e2.Answered && !e2.Rejected
	if e2Mapped && e2.Mapped != e1 {
		return types.MappingAddressAndPortDependent, ""
	}
	switch {
	case !e3.Offered:
		return types.MappingUnknown, "service offers no endpoint on a second address"
	case e3.Rejected:
		return types.MappingUnknown, "second-address probe was rejected by the service"
	case !e3.Answered:
		return types.MappingUnknown, "second-address probe got no answer"
	case e3.Mapped == e1:
		return types.MappingEndpointIndependent, ""
	case e2Mapped:
		return types.MappingAddressDependent, ""
	case !e2.Offered:
		return types.MappingAddressAndPortDependent, ""
	case e2.Rejected:
		return types.MappingUnknown, "same-address probe was rejected by the service, address and port dependence cannot be separated"
	default:
		return types.MappingUnknown, "same-address probe got no answer, address and port dependence cannot be separated"
	}
}

// decideFiltering 根据换地址/换端口回复判定过滤行为
//
// 对过滤探测而言，没有回复本身就是观察结果。
func decideFiltering(changeAddr, changePort observation) (types.Filtering, string) {
	if changeAddr.Answered && !changeAddr.Rejected {
		return types.FilteringEndpointIndependent, ""
	}
	if changePort.Answered && !changePort.Rejected {
		return types.FilteringAddressDependent, ""
	}

	caUsable := changeAddr.Offered && !changeAddr.Rejected
	cpUsable := changePort.Offered && !changePort.Rejected
	switch {
	case cpUsable:
		return types.FilteringAddressAndPortDependent, ""
	case caUsable:
		return types.FilteringUnknown, "change-address reply blocked and change-port request unavailable"
	case changeAddr.Rejected || changePort.Rejected:
		return types.FilteringUnknown, "filtering probe unsupported by the service"
	default:
		return types.FilteringUnknown, "service offers no filtering probe"
	}
}

// portDelta 两次分配的端口差，按 16 位回绕
func portDelta(first, second uint16) uint16 {
	if second >= first {
		return second - first
	}
	return 65535 - (first - second)
}

// decideAllocation 比较两个套接字对同一组目的地的端口增量
func decideAllocation(primary1, other1, primary2, other2 types.Endpoint) types.PortAllocation {
	if portDelta(primary1.Port, primary2.Port) == portDelta(other1.Port, other2.Port) {
		return types.PortAllocationPredictable
	}
	return types.PortAllocationRandom
}
