package nvstore

import "sync"

// image 暂存区 + 持久区的通用实现，供各后端复用
type image struct {
	mu      sync.Mutex
	staged  []byte
	durable []byte
}

func newImage(capacity int) *image {
	buf := make([]byte, capacity)
	for i := range buf {
		buf[i] = ErasedByte
	}
	return &image{staged: buf, durable: append([]byte(nil), buf...)}
}

// load 用持久数据初始化，长度不足的部分保持擦除状态
func (im *image) load(data []byte) {
	im.mu.Lock()
	defer im.mu.Unlock()
	for i := range im.durable {
		if i < len(data) {
			im.durable[i] = data[i]
		} else {
			im.durable[i] = ErasedByte
		}
	}
	copy(im.staged, im.durable)
}

func (im *image) read(addr int) byte {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.staged[addr]
}

func (im *image) write(addr int, v byte) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.staged[addr] = v
}

// snapshot 返回暂存区副本
func (im *image) snapshot() []byte {
	im.mu.Lock()
	defer im.mu.Unlock()
	return append([]byte(nil), im.staged...)
}

// promote 暂存区写入持久区
func (im *image) promote() {
	im.mu.Lock()
	defer im.mu.Unlock()
	copy(im.durable, im.staged)
}

// revert 丢弃暂存修改
func (im *image) revert() {
	im.mu.Lock()
	defer im.mu.Unlock()
	copy(im.staged, im.durable)
}

func (im *image) durableCopy() []byte {
	im.mu.Lock()
	defer im.mu.Unlock()
	return append([]byte(nil), im.durable...)
}
