// Package metrics 记录探测过程的 Prometheus 指标
//
// 指标只在单次运行内累积，可通过 WriteTextfile 写出，
// 供 node_exporter 的 textfile collector 采集周期性巡检的结果。
//
// # 指标
//
//	ninat_probe_datagrams_sent_total{step}
//	ninat_probe_probes_total{step,outcome}
//	ninat_probe_datagrams_discarded_total{reason}
//	ninat_probe_rtt_seconds
//	ninat_classifier_result_info{status,mapping,filtering,nat_type}
package metrics
