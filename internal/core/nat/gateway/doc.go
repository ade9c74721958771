// Package gateway 查询本地网关自报告的外部地址
//
// 依次尝试：
//   - NAT-PMP（RFC 6886），向默认网关请求外部地址
//   - UPnP IGD，经 SSDP 发现 WANIPConnection / WANPPPConnection 服务
//
// 网关报告的地址只作参考：它与穿透服务观察到的外部地址不一致，
// 或本身是私有地址、运营商级 NAT 地址时，说明链路上还有另一层 NAT。
// 不创建任何端口映射。
package gateway
