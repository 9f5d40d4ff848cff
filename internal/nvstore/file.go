package nvstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore 文件镜像存储：宿主机上对闪存的模拟。
// 写入暂存在内存，Commit 时写临时文件后原子重命名覆盖镜像。
type FileStore struct {
	path    string
	img     *image
	lastErr error
}

// OpenFileStore 打开（或创建）镜像文件。文件不存在时视为全新擦除的闪存。
func OpenFileStore(path string, capacity int) (*FileStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &FileStore{path: path, img: newImage(capacity)}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		s.img.load(data)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open store image: %w", err)
	}
	return s, nil
}

func (s *FileStore) ReadByte(addr int) (byte, error) {
	if err := checkAddr(s, addr); err != nil {
		return 0, err
	}
	return s.img.read(addr), nil
}

func (s *FileStore) WriteByte(addr int, val byte) error {
	if err := checkAddr(s, addr); err != nil {
		return err
	}
	s.img.write(addr, val)
	return nil
}

// Commit 将暂存镜像写入文件，失败时返回 false，错误可通过 Err 获取
func (s *FileStore) Commit() bool {
	if err := s.flush(); err != nil {
		s.lastErr = err
		return false
	}
	s.lastErr = nil
	s.img.promote()
	return true
}

func (s *FileStore) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(s.img.snapshot()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Capacity() int { return len(s.img.staged) }

// Revert 丢弃未提交的写入
func (s *FileStore) Revert() error {
	s.img.revert()
	return nil
}

// Err 最近一次 Commit 的错误
func (s *FileStore) Err() error { return s.lastErr }

// Path 镜像文件路径
func (s *FileStore) Path() string { return s.path }
