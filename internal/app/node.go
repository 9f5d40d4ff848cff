package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/clock"
	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/coordinator"
	"github.com/taoyao-code/iot-node/internal/identity"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/netlink"
	"github.com/taoyao-code/iot-node/internal/nvstore"
	"github.com/taoyao-code/iot-node/internal/plugin"
	"github.com/taoyao-code/iot-node/internal/syncengine"
	"github.com/taoyao-code/iot-node/internal/wake"
)

// OpenStore 按配置打开非易失存储；redis 后端需要 rdb
func OpenStore(ctx context.Context, cfg cfgpkg.StoreConfig, rdb redis.Cmdable) (nvstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return nvstore.NewMemStore(cfg.Capacity), nil
	case "file":
		s, err := nvstore.OpenFileStore(cfg.Path, cfg.Capacity)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("store backend redis: redis client unavailable")
		}
		s, err := nvstore.OpenRedisStore(ctx, rdb, cfg.RedisKey, cfg.Capacity, cfg.RedisTimeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Node 节点进程内构建好的全部组件
type Node struct {
	NV       nvstore.Store
	Store    *configstore.Store
	Identity *identity.Manager
	Engine   *syncengine.Engine
	Cycle    *wake.Cycle
}

// BuildNode 组装节点：存储、标识、同步引擎、插件流水线与唤醒周期
func BuildNode(nv nvstore.Store, cfg *cfgpkg.Config, m *metrics.NodeMetrics, log *zap.Logger) (*Node, error) {
	order, err := configstore.ParseWriteOrder(cfg.Store.WriteOrder)
	if err != nil {
		return nil, err
	}
	clk := clock.Real()
	nc := cfg.Node

	cs := configstore.New(nv, order)
	ident := identity.NewManager(cs, nil, log.Named("identity"))

	client := coordinator.NewClient(nil, nc.CoordinatorHost, nc.CoordinatorPort, nc.User, nc.Password, nc.HTTPTimeout)
	client.MaxBody = int(cs.Capacity())
	connector := &netlink.Connector{
		Link:         netlink.NewHostLink(nc.CoordinatorAddr(), nc.HTTPTimeout),
		SSID:         nc.SSID,
		Pass:         nc.WifiPassword,
		Clock:        clk,
		Backoff:      netlink.ConstantBackoff(nc.ConnectInterval),
		RebeginEvery: nc.RebeginEvery,
		Log:          log.Named("netlink"),
		OnAttempt:    m.AssociationAttempt.Inc,
	}
	engine := syncengine.New(cs, client, connector, m, log.Named("sync"))

	env := &plugin.StaticEnvironment{
		Present: cfg.Sensors.Present,
		Reading: plugin.Reading{
			PressureHPa:  cfg.Sensors.PressureHPa,
			TemperatureC: cfg.Sensors.TemperatureC,
			HumidityPct:  cfg.Sensors.HumidityPct,
		},
	}
	gpio := plugin.NewLogGPIO(log.Named("gpio"))
	pipeline := plugin.NewPipeline(m, log.Named("plugin"),
		plugin.NewPowerRailOn(gpio, clk),
		plugin.NewBME280(env, clk, log.Named("bme280")),
		plugin.NewPowerRailOff(gpio, clk),
	)

	cycle := wake.New(wake.Options{
		Identity:        ident,
		Store:           cs,
		Engine:          engine,
		Pipeline:        pipeline,
		DeepSleep:       nc.DeepSleep,
		RegisteredSleep: nc.RegisteredSleep,
		Metrics:         m,
		Logger:          log.Named("wake"),
	})

	return &Node{NV: nv, Store: cs, Identity: ident, Engine: engine, Cycle: cycle}, nil
}
