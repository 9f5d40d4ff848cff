package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig 每个 key 一个令牌桶
type RateLimitConfig struct {
	RatePerSec float64 // <=0 表示不限流
	Burst      int
}

// KeyedLimiter 按 key（节点标识）分配的令牌桶限流器
type KeyedLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rejected atomic.Int64
}

// NewKeyedLimiter 创建限流器；burst 缺省为速率的 2 倍
func NewKeyedLimiter(cfg RateLimitConfig) *KeyedLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RatePerSec*2) + 1
	}
	return &KeyedLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

// Allow 非阻塞检查
func (l *KeyedLimiter) Allow(key string) bool {
	if l.cfg.RatePerSec <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.RatePerSec), l.cfg.Burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	if lim.Allow() {
		return true
	}
	l.rejected.Add(1)
	return false
}

// Rejected 累计拒绝次数
func (l *KeyedLimiter) Rejected() int64 { return l.rejected.Load() }

// RateLimit 按路径参数 param 限流，超限返回 429；onReject 可为 nil
func RateLimit(l *KeyedLimiter, param string, onReject func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Param(param)) {
			if onReject != nil {
				onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}
