package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/nvstore"
)

// ErrInvalidConfig 配置不一致
var ErrInvalidConfig = errors.New("config: invalid")

// Validate 在启动任何组件之前检查配置一致性
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("%w: store.backend=redis requires redis.enabled", ErrInvalidConfig)
		}
		if c.Store.RedisKey == "" {
			return fmt.Errorf("%w: store.redisKey is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Store.Backend == "file" && c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalidConfig)
	}
	if c.Store.Capacity <= nvstore.ConfigOffset {
		return fmt.Errorf("%w: store.capacity %d leaves no room after the %d-byte header",
			ErrInvalidConfig, c.Store.Capacity, nvstore.ConfigOffset)
	}
	if _, err := configstore.ParseWriteOrder(c.Store.WriteOrder); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Node.CoordinatorHost == "" {
		return fmt.Errorf("%w: node.coordinatorHost is empty", ErrInvalidConfig)
	}
	if c.Node.CoordinatorPort <= 0 || c.Node.CoordinatorPort > 65535 {
		return fmt.Errorf("%w: node.coordinatorPort %d out of range", ErrInvalidConfig, c.Node.CoordinatorPort)
	}

	switch c.Coordinator.Registry {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: coordinator.registry=postgres requires database.dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown coordinator.registry %q", ErrInvalidConfig, c.Coordinator.Registry)
	}
	for i, a := range c.Coordinator.Accounts {
		if a.User == "" {
			return fmt.Errorf("%w: coordinator.accounts[%d] has no user", ErrInvalidConfig, i)
		}
	}
	if c.Coordinator.RateLimit < 0 {
		return fmt.Errorf("%w: coordinator.rateLimit is negative", ErrInvalidConfig)
	}
	return nil
}

// CoordinatorURL 节点访问协调端使用的基础地址（用于日志）
func (n NodeConfig) CoordinatorURL() string {
	return "http://" + n.CoordinatorAddr()
}

// CoordinatorAddr host:port 形式的协调端地址
func (n NodeConfig) CoordinatorAddr() string {
	return net.JoinHostPort(n.CoordinatorHost, strconv.Itoa(n.CoordinatorPort))
}
