package nvstore

// MemStore 内存存储，模拟 ESP8266 EEPROM 的 RAM 暂存 + 闪存持久语义。
// 主要用于测试与模拟节点。
type MemStore struct {
	img *image

	// FailCommit 为 true 时 Commit 返回 false（模拟闪存写入失败）
	FailCommit bool

	commits int
}

// NewMemStore 创建指定容量的内存存储，初始内容为擦除状态
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemStore{img: newImage(capacity)}
}

// NewMemStoreFrom 以给定镜像作为已持久化内容创建存储
func NewMemStoreFrom(capacity int, data []byte) *MemStore {
	s := NewMemStore(capacity)
	s.img.load(data)
	return s
}

func (s *MemStore) ReadByte(addr int) (byte, error) {
	if err := checkAddr(s, addr); err != nil {
		return 0, err
	}
	return s.img.read(addr), nil
}

func (s *MemStore) WriteByte(addr int, val byte) error {
	if err := checkAddr(s, addr); err != nil {
		return err
	}
	s.img.write(addr, val)
	return nil
}

func (s *MemStore) Commit() bool {
	if s.FailCommit {
		return false
	}
	s.img.promote()
	s.commits++
	return true
}

func (s *MemStore) Capacity() int { return len(s.img.staged) }

// Revert 丢弃未提交的写入
func (s *MemStore) Revert() error {
	s.img.revert()
	return nil
}

// Durable 返回已持久化镜像的副本
func (s *MemStore) Durable() []byte { return s.img.durableCopy() }

// Staged 返回暂存镜像的副本
func (s *MemStore) Staged() []byte { return s.img.snapshot() }

// Commits 成功提交次数
func (s *MemStore) Commits() int { return s.commits }

// PowerCycle 模拟断电重启：暂存内容丢失，仅保留持久内容
func (s *MemStore) PowerCycle() { s.img.revert() }
