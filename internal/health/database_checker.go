package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseChecker 节点注册表数据库检查器
type DatabaseChecker struct {
	pool *pgxpool.Pool
}

// NewDatabaseChecker 创建数据库健康检查器
func NewDatabaseChecker(pool *pgxpool.Pool) *DatabaseChecker {
	return &DatabaseChecker{pool: pool}
}

func (c *DatabaseChecker) Name() string {
	return "database"
}

// Check Ping、连接池利用率，以及已注册节点数
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return failed(start, "ping failed", err)
	}

	stats := c.pool.Stat()
	utilization := 0.0
	if stats.MaxConns() > 0 {
		utilization = float64(stats.AcquiredConns()) / float64(stats.MaxConns())
	}

	status, message := StatusHealthy, "ok"
	switch {
	case utilization >= 1.0:
		status, message = StatusUnhealthy, "connection pool exhausted"
	case utilization > 0.9:
		status, message = StatusDegraded, "connection pool near limit"
	}

	details := map[string]interface{}{
		"total_conns":    stats.TotalConns(),
		"acquired_conns": stats.AcquiredConns(),
		"max_conns":      stats.MaxConns(),
		"utilization":    fmt.Sprintf("%.1f%%", utilization*100),
	}
	var nodes int64
	if err := c.pool.QueryRow(ctx, "SELECT count(*) FROM nodes").Scan(&nodes); err == nil {
		details["nodes"] = nodes
	} else if status == StatusHealthy {
		status, message = StatusDegraded, "nodes table unavailable"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
