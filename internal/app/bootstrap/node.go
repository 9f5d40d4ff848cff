package bootstrap

import (
	"context"
	"errors"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/app"
	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/health"
	"github.com/taoyao-code/iot-node/internal/httpserver"
	"github.com/taoyao-code/iot-node/internal/metrics"
	redisstorage "github.com/taoyao-code/iot-node/internal/storage/redis"
	"github.com/taoyao-code/iot-node/internal/wake"
)

// NodeRuntime 节点进程：组件加上可选的诊断 HTTP 服务
type NodeRuntime struct {
	*app.Node
	Metrics *metrics.NodeMetrics

	log     *zap.Logger
	redis   *redisstorage.Client
	httpSrv *httpserver.Server
	agg     *health.Aggregator
}

// OpenNode 打开存储并组装节点；调用方负责 Close
func OpenNode(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) (*NodeRuntime, error) {
	promReg, m := app.NewNodeMetrics()

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	var rdb redis.Cmdable
	if redisClient != nil {
		rdb = redisClient.Client
	}
	nv, err := app.OpenStore(ctx, cfg.Store, rdb)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	log.Info("store opened", zap.String("backend", cfg.Store.Backend), zap.Int("capacity", nv.Capacity()))

	node, err := app.BuildNode(nv, cfg, m, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	rt := &NodeRuntime{Node: node, Metrics: m, log: log, redis: redisClient}
	rt.agg = app.NewHealthAggregator(nil,
		health.NewStoreChecker(node.Store, node.Identity),
		health.NewCoordinatorChecker(cfg.Node.CoordinatorAddr()),
	)
	app.AddRedisChecker(rt.agg, redisClient)

	if cfg.HTTP.Enable {
		var handler = metrics.Handler(promReg)
		if !cfg.Metrics.Enable {
			handler = nil
		}
		rt.httpSrv = httpserver.New(cfg.HTTP, cfg.Metrics.Path, handler, nil)
		rt.httpSrv.Register(func(r *gin.Engine) { app.RegisterHealthRoutes(r, rt.agg) })
	}
	return rt, nil
}

// Run 循环执行唤醒周期，cycles<=0 时直到收到退出信号
func (rt *NodeRuntime) Run(ctx context.Context, cycles int, sleeper wake.Sleeper, onReport func(wake.Report)) error {
	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	if rt.httpSrv != nil {
		go func() {
			if err := rt.httpSrv.Start(); err != nil {
				rt.log.Error("diagnostics http server error", zap.Error(err))
			}
		}()
	}
	if sleeper == nil {
		sleeper = wake.TimerSleeper{}
	}
	err := rt.Cycle.Run(ctx, sleeper, cycles, onReport)
	if errors.Is(err, context.Canceled) {
		rt.log.Info("node stopped")
		return nil
	}
	return err
}

// Health 立即执行一次健康检查
func (rt *NodeRuntime) Health(ctx context.Context) health.HealthReport {
	return rt.agg.Report(ctx)
}

// Close 关闭诊断服务与 Redis
func (rt *NodeRuntime) Close() {
	if rt.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.httpSrv.Shutdown(ctx)
	}
	_ = rt.redis.Close()
}
