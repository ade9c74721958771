// Package transport 定义探测数据报的收发抽象
//
// 分类器只通过 Transport 收发数据报，不关心底层是直连 UDP 还是 SOCKS5 UDP 中继。
//
// # 实现
//
//   - udp: 单个本地 UDP 套接字，整个运行期间保持不变
//   - socks5: 经 SOCKS5 UDP ASSOCIATE 中继，收发时加解 UDP 请求头
//
// # 约定
//
//   - Recv 的截止时间为零值表示无限等待
//   - 截止时间到达返回 ErrTimeout，已关闭返回 ErrClosed
//   - 其它 I/O 失败包装为 *Error
//   - Close 可重复调用，并会唤醒阻塞中的 Recv
package transport
