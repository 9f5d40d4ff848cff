package netlink

import (
	"context"
	"net"
	"sync"
	"time"
)

// HostLink 宿主机上的关联模拟：能与协调端建立 TCP 连接即视为已关联
type HostLink struct {
	Addr    string
	Timeout time.Duration

	mu    sync.Mutex
	begun bool
}

// NewHostLink 创建宿主机链路
func NewHostLink(addr string, timeout time.Duration) *HostLink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HostLink{Addr: addr, Timeout: timeout}
}

func (h *HostLink) Begin(ctx context.Context, ssid, pass string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.begun = true
	return nil
}

func (h *HostLink) Connected(ctx context.Context) bool {
	h.mu.Lock()
	begun := h.begun
	h.mu.Unlock()
	if !begun {
		return false
	}
	d := net.Dialer{Timeout: h.Timeout}
	conn, err := d.DialContext(ctx, "tcp", h.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
