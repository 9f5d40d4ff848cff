// Package wake 实现节点一次唤醒周期：确认标识、读取配置、
// 按配置选择注册/空闲/测量分支，最后给出睡眠时长。
package wake

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/identity"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
	"github.com/taoyao-code/iot-node/internal/plugin"
	"github.com/taoyao-code/iot-node/internal/syncengine"
)

// 默认睡眠时长
const (
	DefaultDeepSleep       = 60 * time.Second
	DefaultRegisteredSleep = 10 * time.Second
)

// Branch 唤醒周期走过的分支
type Branch int

const (
	// BranchRegister 存储中的配置不属于本节点，需要注册/拉取
	BranchRegister Branch = iota + 1
	// BranchIdle 配置未启用任何传感器或特性，只检查更新
	BranchIdle
	// BranchMeasure 执行插件并上传测量值
	BranchMeasure
)

func (b Branch) String() string {
	switch b {
	case BranchRegister:
		return "register"
	case BranchIdle:
		return "idle"
	case BranchMeasure:
		return "measure"
	}
	return "none"
}

// Report 一次唤醒的结果
type Report struct {
	NodeID  string
	Created bool // 本次唤醒生成了新标识
	Branch  Branch
	Outcome syncengine.Outcome
	Upload  *syncengine.UploadResult
	Values  map[string]string
	Sleep   time.Duration
}

// Options 周期依赖
type Options struct {
	Identity        *identity.Manager
	Store           *configstore.Store
	Engine          *syncengine.Engine
	Pipeline        *plugin.Pipeline
	DeepSleep       time.Duration
	RegisteredSleep time.Duration
	Metrics         *metrics.NodeMetrics
	Logger          *zap.Logger
}

// Cycle 唤醒周期，进程启动时构建一次
type Cycle struct {
	identity        *identity.Manager
	store           *configstore.Store
	engine          *syncengine.Engine
	pipeline        *plugin.Pipeline
	deepSleep       time.Duration
	registeredSleep time.Duration
	metrics         *metrics.NodeMetrics
	log             *zap.Logger
}

// New 创建唤醒周期
func New(o Options) *Cycle {
	c := &Cycle{
		identity:        o.Identity,
		store:           o.Store,
		engine:          o.Engine,
		pipeline:        o.Pipeline,
		deepSleep:       o.DeepSleep,
		registeredSleep: o.RegisteredSleep,
		metrics:         o.Metrics,
		log:             o.Logger,
	}
	if c.deepSleep <= 0 {
		c.deepSleep = DefaultDeepSleep
	}
	if c.registeredSleep <= 0 {
		c.registeredSleep = DefaultRegisteredSleep
	}
	if c.pipeline == nil {
		c.pipeline = plugin.NewPipeline(o.Metrics, o.Logger)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNodeMetrics(nil)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// DeepSleep 默认睡眠时长
func (c *Cycle) DeepSleep() time.Duration { return c.deepSleep }

// Once 执行一次唤醒。只有标识无法建立时返回错误。
func (c *Cycle) Once(ctx context.Context) (Report, error) {
	id, created, err := c.identity.Bootstrap()
	if err != nil {
		return Report{Sleep: c.deepSleep}, fmt.Errorf("bootstrap identity: %w", err)
	}
	rep := Report{NodeID: identity.Render(id), Created: created}
	log := c.log.With(zap.String("node", rep.NodeID))

	cfg := c.storedConfig(log)

	switch {
	case cfg.ID != rep.NodeID:
		rep.Branch = BranchRegister
		log.Info("stored config not addressed to this node, updating", zap.String("config_id", cfg.ID))
		rep.Outcome = c.engine.UpdateConfig(ctx, rep.NodeID)
		rep.Sleep = c.deepSleep
		if rep.Outcome.Succeeded() {
			rep.Sleep = c.registeredSleep
		}

	case cfg.Idle():
		rep.Branch = BranchIdle
		log.Info("no sensors or features configured, checking for update")
		rep.Outcome = c.engine.UpdateConfig(ctx, rep.NodeID)
		rep.Sleep = c.deepSleep

	default:
		rep.Branch = BranchMeasure
		c.measure(ctx, log, cfg, &rep)
	}

	c.metrics.WakeCycleTotal.WithLabelValues(rep.Branch.String()).Inc()
	c.metrics.SleepSeconds.Set(rep.Sleep.Seconds())
	log.Info("wake cycle done",
		zap.String("branch", rep.Branch.String()),
		zap.String("outcome", rep.Outcome.String()),
		zap.Duration("sleep", rep.Sleep))
	return rep, nil
}

func (c *Cycle) measure(ctx context.Context, log *zap.Logger, cfg *nodeconfig.Config, rep *Report) {
	rep.Sleep = c.deepSleep
	if cfg.SleepTimeMillis > 0 {
		rep.Sleep = time.Duration(cfg.SleepTimeMillis) * time.Millisecond
	}

	results := nodeconfig.NewValuesPayload(cfg)
	c.pipeline.Run(ctx, &plugin.Env{
		Features: cfg.Features(),
		Sensors:  cfg.Sensors(),
		Results:  results,
	})
	rep.Values = results.Values

	body, err := results.Marshal()
	if err != nil {
		log.Error("marshal values failed", zap.Error(err))
		return
	}
	if err := c.engine.Connect(ctx); err != nil {
		log.Warn("network unavailable, skipping upload", zap.Error(err))
		return
	}
	up := c.engine.PostValues(ctx, body, rep.NodeID)
	rep.Upload = &up
	rep.Outcome = up.Outcome
}

// storedConfig 读取并解析存储中的配置；无法读取或解析时视为空配置
func (c *Cycle) storedConfig(log *zap.Logger) *nodeconfig.Config {
	raw, err := c.store.Load()
	if err != nil {
		log.Warn("stored config unreadable", zap.Error(err))
		return &nodeconfig.Config{}
	}
	cfg, err := nodeconfig.Parse(raw)
	if err != nil {
		log.Warn("stored config malformed", zap.Error(err))
		return &nodeconfig.Config{}
	}
	return cfg
}
