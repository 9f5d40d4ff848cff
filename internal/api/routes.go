package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/api/middleware"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/registry"
)

// Options 路由依赖
type Options struct {
	Registry  registry.Registry
	Defaults  registry.Template
	Accounts  map[string]string // 节点 Basic 认证账号
	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig
	Metrics   *metrics.CoordinatorMetrics
	Logger    *zap.Logger
}

// RegisterRoutes 注册节点协议路由与运维路由
func RegisterRoutes(r *gin.Engine, o Options) {
	if r == nil || o.Registry == nil {
		return
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := o.Metrics
	if m == nil {
		m = metrics.NewCoordinatorMetrics(nil)
	}

	nodes := NewNodeHandler(o.Registry, o.Defaults, m, logger)
	limiter := middleware.NewKeyedLimiter(o.RateLimit)

	node := r.Group("/api/node/:id",
		middleware.BasicAuth(o.Accounts, logger),
		middleware.RateLimit(limiter, "id", m.RateLimitedTotal.Inc),
	)
	node.GET("/config", nodes.GetConfig)
	node.POST("/config", nodes.Register)
	node.POST("/values", nodes.PostValues)

	admin := NewAdminHandler(o.Registry, logger)
	ag := r.Group("/api/admin", middleware.APIKeyAuth(o.Auth, logger))
	if !o.Auth.Enabled() {
		logger.Warn("admin api authentication disabled - only for development!")
	}
	ag.GET("/nodes", admin.ListNodes)
	ag.GET("/nodes/:id", admin.GetNode)
	ag.PUT("/nodes/:id/config", admin.UpdateConfig)

	logger.Info("coordinator routes registered", zap.Int("endpoints", 6))
}
