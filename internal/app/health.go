package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/iot-node/internal/health"
)

// NewHealthAggregator 创建健康检查聚合器；pool 为 nil 时不检查数据库
func NewHealthAggregator(pool *pgxpool.Pool, checkers ...health.Checker) *health.Aggregator {
	agg := health.NewAggregator(checkers...)
	if pool != nil {
		agg.AddChecker(health.NewDatabaseChecker(pool))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
