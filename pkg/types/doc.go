// Package types 定义 ninat 的公共值类型
//
// 包括 UDP 端点、映射/过滤行为枚举、主机 NAT 分级以及分类结果。
// 这些类型不依赖任何内部包，可被报告层和测试直接使用。
package types
