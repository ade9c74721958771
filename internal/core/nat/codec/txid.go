package codec

import (
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"
)

// TxIDSize 事务标识长度，与 STUN 的 96 位事务 ID 一致
const TxIDSize = 12

// TxID 事务标识
type TxID [TxIDSize]byte

// String 返回十六进制表示
func (id TxID) String() string { return hex.EncodeToString(id[:]) }

// IDGenerator 为一次运行生成事务标识
//
// 前 8 字节来自运行 ID 的随机部分，后 4 字节为递增计数。
// 同一运行内不会重复，不同运行之间碰撞概率可忽略。
type IDGenerator struct {
	run     uuid.UUID
	counter atomic.Uint32
}

// NewIDGenerator 创建生成器，运行 ID 随机生成
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{run: uuid.New()}
}

// RunID 返回本次运行的标识
func (g *IDGenerator) RunID() string { return g.run.String() }

// Next 返回下一个事务标识
func (g *IDGenerator) Next() TxID {
	var id TxID
	copy(id[:8], g.run[8:])
	binary.BigEndian.PutUint32(id[8:], g.counter.Add(1))
	return id
}
