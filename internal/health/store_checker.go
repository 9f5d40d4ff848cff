package health

import (
	"context"
	"time"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/identity"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

// StoreChecker 检查节点非易失存储的布局
type StoreChecker struct {
	store    *configstore.Store
	identity *identity.Manager
}

// NewStoreChecker 创建存储检查器
func NewStoreChecker(store *configstore.Store, ident *identity.Manager) *StoreChecker {
	return &StoreChecker{store: store, identity: ident}
}

func (c *StoreChecker) Name() string {
	return "store"
}

// Check 未生成标识为降级；已有标识但配置区不可读为不健康
func (c *StoreChecker) Check(context.Context) CheckResult {
	start := time.Now()
	details := map[string]interface{}{"capacity": c.store.Capacity()}

	if !c.identity.HasIdentity() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "identity not provisioned",
			Details: details,
			Latency: time.Since(start),
		}
	}
	id, err := c.identity.Load()
	if err != nil {
		return failed(start, "load identity", err)
	}
	details["id"] = identity.Render(id)

	raw, err := c.store.Load()
	if err != nil {
		return failed(start, "load config", err)
	}
	details["length"] = len(raw)

	status, message := StatusHealthy, "ok"
	if cfg, err := nodeconfig.Parse(raw); err != nil {
		status, message = StatusDegraded, "stored config is not a JSON object"
	} else if cfg.ID != identity.Render(id) {
		status, message = StatusDegraded, "stored config not addressed to this node"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
