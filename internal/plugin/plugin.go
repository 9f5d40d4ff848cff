// Package plugin 按固定顺序执行节点配置中声明的特性与传感器插件：
// 传感器前特性 → 传感器读取 → 传感器后特性。
package plugin

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

// Stage 插件执行阶段
type Stage int

const (
	StagePreSensor Stage = iota
	StageSensor
	StagePostSensor
)

var stageNames = [...]string{"pre_sensor", "sensor", "post_sensor"}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Env 插件执行环境
type Env struct {
	Features nodeconfig.TagSet
	Sensors  nodeconfig.TagSet
	Results  *nodeconfig.ValuesPayload
}

// Active 插件声明的标签中是否有任一被激活
func (e *Env) Active(tags ...nodeconfig.Tag) bool {
	return e.Features.Any(tags...) || e.Sensors.Any(tags...)
}

// Plugin 特性或传感器插件
type Plugin interface {
	Name() string
	Stage() Stage
	// Tags 插件响应的标签
	Tags() []nodeconfig.Tag
	Run(ctx context.Context, env *Env) error
}

// Pipeline 插件流水线
type Pipeline struct {
	plugins []Plugin
	metrics *metrics.NodeMetrics
	log     *zap.Logger
}

// NewPipeline 创建流水线；同一阶段内按注册顺序执行
func NewPipeline(m *metrics.NodeMetrics, log *zap.Logger, plugins ...Plugin) *Pipeline {
	if m == nil {
		m = metrics.NewNodeMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{plugins: plugins, metrics: m, log: log}
}

// Register 追加插件
func (p *Pipeline) Register(plugins ...Plugin) {
	p.plugins = append(p.plugins, plugins...)
}

// Run 依次执行三个阶段。单个插件失败只记录日志，不中断后续插件。
func (p *Pipeline) Run(ctx context.Context, env *Env) {
	for _, t := range env.Features.Unknown() {
		p.log.Debug("unknown feature tag ignored", zap.String("tag", string(t)))
	}
	for _, t := range env.Sensors.Unknown() {
		p.log.Debug("unknown sensor tag ignored", zap.String("tag", string(t)))
	}

	for _, stage := range []Stage{StagePreSensor, StageSensor, StagePostSensor} {
		for _, pl := range p.plugins {
			if pl.Stage() != stage || !env.Active(pl.Tags()...) {
				continue
			}
			had := make(map[nodeconfig.Tag]bool, len(pl.Tags()))
			for _, t := range pl.Tags() {
				_, ok := env.Results.Values[string(t)]
				had[t] = ok
			}
			if err := pl.Run(ctx, env); err != nil {
				p.log.Warn("plugin failed", zap.String("plugin", pl.Name()), zap.String("stage", stage.String()), zap.Error(err))
				continue
			}
			for _, t := range pl.Tags() {
				if _, ok := env.Results.Values[string(t)]; ok && !had[t] {
					p.metrics.PluginResultTotal.WithLabelValues(string(t)).Inc()
				}
			}
		}
	}
}
