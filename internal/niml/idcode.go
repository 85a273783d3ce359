package niml

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// IDCodeLen 是 self_idcode 的长度。
const IDCodeLen = 24

// IDGenerator 生成 self_idcode。实现必须可以并发调用。
type IDGenerator interface {
	NewIDCode() string
}

// UUIDGenerator 由随机 UUID 生成 24 个大写字母组成的 id。
type UUIDGenerator struct{}

var _ IDGenerator = UUIDGenerator{}

// NewIDCode 实现 IDGenerator。
func (UUIDGenerator) NewIDCode() string {
	var b strings.Builder
	b.Grow(IDCodeLen)
	for b.Len() < IDCodeLen {
		u := uuid.New()
		for _, c := range u {
			if b.Len() == IDCodeLen {
				break
			}
			b.WriteByte('A' + c%26)
		}
	}
	return b.String()
}

// SequenceGenerator 按顺序生成 "<Prefix>_000"、"<Prefix>_001"... 形式的 id，
// 用于需要确定性输出的测试。
type SequenceGenerator struct {
	Prefix string
	next   atomic.Int64
}

var _ IDGenerator = (*SequenceGenerator)(nil)

// NewSequenceGenerator 创建一个从 0 开始计数的 SequenceGenerator。
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{Prefix: prefix}
}

// NewIDCode 实现 IDGenerator。
func (g *SequenceGenerator) NewIDCode() string {
	n := g.next.Inc() - 1
	return fmt.Sprintf("%s_%03d", g.Prefix, n)
}
