package nvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 以单个 Redis key 保存整块镜像。
// 多个模拟节点可共享同一 Redis，每个节点使用独立 key。
type RedisStore struct {
	rdb     redis.Cmdable
	key     string
	timeout time.Duration
	img     *image
	lastErr error
}

// OpenRedisStore 从 Redis 加载镜像；key 不存在时视为全新擦除的闪存
func OpenRedisStore(ctx context.Context, rdb redis.Cmdable, key string, capacity int, timeout time.Duration) (*RedisStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	s := &RedisStore{rdb: rdb, key: key, timeout: timeout, img: newImage(capacity)}

	data, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		s.img.load(data)
	case errors.Is(err, redis.Nil):
	default:
		return nil, fmt.Errorf("load store image %q: %w", key, err)
	}
	return s, nil
}

func (s *RedisStore) ReadByte(addr int) (byte, error) {
	if err := checkAddr(s, addr); err != nil {
		return 0, err
	}
	return s.img.read(addr), nil
}

func (s *RedisStore) WriteByte(addr int, val byte) error {
	if err := checkAddr(s, addr); err != nil {
		return err
	}
	s.img.write(addr, val)
	return nil
}

// Commit 整块 SET，成功后暂存内容成为持久内容
func (s *RedisStore) Commit() bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key, s.img.snapshot(), 0).Err(); err != nil {
		s.lastErr = err
		return false
	}
	s.lastErr = nil
	s.img.promote()
	return true
}

func (s *RedisStore) Capacity() int { return len(s.img.staged) }

// Revert 丢弃未提交的写入
func (s *RedisStore) Revert() error {
	s.img.revert()
	return nil
}

// Err 最近一次 Commit 的错误
func (s *RedisStore) Err() error { return s.lastErr }

// Key 镜像所在的 Redis key
func (s *RedisStore) Key() string { return s.key }
