// Package configstore 管理非易失存储中以长度前缀保存的配置区。
package configstore

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/iot-node/internal/nvstore"
)

// ErrCommitFailed 存储层拒绝持久化
var ErrCommitFailed = errors.New("configstore: commit failed")

// EmptyConfig 创建身份时写入的默认配置
var EmptyConfig = []byte("{}")

// WriteOrder 保存配置时长度字段与内容的写入顺序
type WriteOrder int

const (
	// PayloadFirst 先写内容，再写长度，最后提交。
	// 中途断电时长度字段仍为旧值，不会声明比本次已写入更多的字节。
	PayloadFirst WriteOrder = iota
	// LengthFirst 旧固件顺序：先写长度，再写内容，最后提交。
	// 在长度写入与内容写入之间断电会留下与内容不符的长度。
	LengthFirst
)

func (o WriteOrder) String() string {
	switch o {
	case PayloadFirst:
		return "payload-first"
	case LengthFirst:
		return "length-first"
	default:
		return fmt.Sprintf("WriteOrder(%d)", int(o))
	}
}

// ParseWriteOrder 解析配置中的写入顺序
func ParseWriteOrder(s string) (WriteOrder, error) {
	switch s {
	case "", "payload-first":
		return PayloadFirst, nil
	case "length-first", "legacy":
		return LengthFirst, nil
	}
	return PayloadFirst, fmt.Errorf("unknown write order %q", s)
}

// Store 配置区读写
type Store struct {
	nv    nvstore.Store
	order WriteOrder
}

// New 创建配置区访问器
func New(nv nvstore.Store, order WriteOrder) *Store {
	return &Store{nv: nv, order: order}
}

// NV 底层存储
func (s *Store) NV() nvstore.Store { return s.nv }

// Order 当前写入顺序
func (s *Store) Order() WriteOrder { return s.order }

// Capacity 配置区可容纳的最大字节数
func (s *Store) Capacity() uint32 { return nvstore.ConfigCapacity(s.nv) }

// ReadLength 以四次单字节读取按小端组装长度字段
func (s *Store) ReadLength() (uint32, error) {
	var n uint32
	for i := nvstore.LengthLen - 1; i >= 0; i-- {
		b, err := s.nv.ReadByte(nvstore.LengthOffset + i)
		if err != nil {
			return 0, fmt.Errorf("read config length: %w", err)
		}
		n = n<<8 | uint32(b)
	}
	return n, nil
}

// WriteLength 以四次单字节写入保存长度字段（不提交）
func (s *Store) WriteLength(n uint32) error {
	if err := s.checkLen(n); err != nil {
		return err
	}
	for i := 0; i < nvstore.LengthLen; i++ {
		if err := s.nv.WriteByte(nvstore.LengthOffset+i, byte(n>>(8*i))); err != nil {
			return fmt.Errorf("write config length: %w", err)
		}
	}
	return nil
}

// Read 从配置区读取 length 字节
func (s *Store) Read(length uint32) ([]byte, error) {
	if err := s.checkLen(length); err != nil {
		return nil, err
	}
	return nvstore.ReadRange(s.nv, nvstore.ConfigOffset, int(length))
}

// Write 将 payload 写入配置区（不更新长度、不提交）
func (s *Store) Write(payload []byte) error {
	if err := s.checkLen(uint32Len(payload)); err != nil {
		return err
	}
	return nvstore.WriteRange(s.nv, nvstore.ConfigOffset, payload)
}

// Load 读取长度字段并返回对应的配置内容
func (s *Store) Load() ([]byte, error) {
	n, err := s.ReadLength()
	if err != nil {
		return nil, err
	}
	return s.Read(n)
}

// Stage 按写入顺序写入长度与内容，不提交
func (s *Store) Stage(payload []byte) error {
	n := uint32Len(payload)
	if err := s.checkLen(n); err != nil {
		return err
	}
	if s.order == LengthFirst {
		if err := s.WriteLength(n); err != nil {
			return err
		}
		return s.Write(payload)
	}
	if err := s.Write(payload); err != nil {
		return err
	}
	return s.WriteLength(n)
}

// Save 写入并提交；提交失败时丢弃暂存写入
func (s *Store) Save(payload []byte) error {
	if err := s.Stage(payload); err != nil {
		return err
	}
	if !s.nv.Commit() {
		if r, ok := s.nv.(nvstore.Reverter); ok {
			_ = r.Revert()
		}
		return ErrCommitFailed
	}
	return nil
}

func (s *Store) checkLen(n uint32) error {
	if limit := s.Capacity(); n > limit {
		return fmt.Errorf("%w: length=%d limit=%d", nvstore.ErrCapacityExceeded, n, limit)
	}
	return nil
}

func uint32Len(b []byte) uint32 {
	if uint64(len(b)) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(len(b))
}
