package health

import (
	"context"
	"net"
	"time"
)

// CoordinatorChecker 检查节点到协调端的 TCP 可达性
type CoordinatorChecker struct {
	addr string
}

// NewCoordinatorChecker 创建协调端可达性检查器
func NewCoordinatorChecker(addr string) *CoordinatorChecker {
	return &CoordinatorChecker{addr: addr}
}

func (c *CoordinatorChecker) Name() string {
	return "coordinator"
}

// Check 不可达只算降级：节点会在下个唤醒周期重试
func (c *CoordinatorChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "unreachable: " + err.Error(),
			Details: map[string]interface{}{"addr": c.addr},
			Latency: time.Since(start),
		}
	}
	_ = conn.Close()
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]interface{}{"addr": c.addr},
		Latency: time.Since(start),
	}
}
