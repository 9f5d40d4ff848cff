package nvstore

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange 地址超出存储容量
	ErrOutOfRange = errors.New("nvstore: address out of range")
	// ErrCapacityExceeded 请求长度超过配置区预留容量
	ErrCapacityExceeded = errors.New("nvstore: store capacity exceeded")
)

// Store 字节寻址的非易失存储能力。
// 写入先进入暂存区，只有 Commit 成功后才保证持久化。
type Store interface {
	// ReadByte 读取单个字节（读取暂存视图）
	ReadByte(addr int) (byte, error)
	// WriteByte 写入单个字节到暂存区
	WriteByte(addr int, val byte) error
	// Commit 持久化暂存区，返回是否成功
	Commit() bool
	// Capacity 存储总容量（编译期常量）
	Capacity() int
}

// Reverter 可选能力：丢弃尚未提交的暂存写入
type Reverter interface {
	Revert() error
}

func checkAddr(s Store, addr int) error {
	if addr < 0 || addr >= s.Capacity() {
		return fmt.Errorf("%w: addr=%d capacity=%d", ErrOutOfRange, addr, s.Capacity())
	}
	return nil
}

// ReadRange 逐字节读取 [addr, addr+n)
func ReadRange(s Store, addr, n int) ([]byte, error) {
	if n < 0 || addr+n > s.Capacity() {
		return nil, fmt.Errorf("%w: addr=%d len=%d capacity=%d", ErrOutOfRange, addr, n, s.Capacity())
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := s.ReadByte(addr + i)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// WriteRange 逐字节写入 data 到 addr 起始位置
func WriteRange(s Store, addr int, data []byte) error {
	if addr+len(data) > s.Capacity() {
		return fmt.Errorf("%w: addr=%d len=%d capacity=%d", ErrOutOfRange, addr, len(data), s.Capacity())
	}
	for i, b := range data {
		if err := s.WriteByte(addr+i, b); err != nil {
			return err
		}
	}
	return nil
}
