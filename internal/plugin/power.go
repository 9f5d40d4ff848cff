package plugin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/clock"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

// GPIO 引脚输出能力
type GPIO interface {
	SetOutput(pin int, high bool) error
}

// PowerSettle 供电后等待外设启动的时间
const PowerSettle = 200 * time.Millisecond

// 特性标签对应的供电引脚
var powerPins = []struct {
	tag nodeconfig.Tag
	pin int
}{
	{nodeconfig.TagI2CDeviceOnIO13, 13},
	{nodeconfig.TagI2CDeviceOnIO0, 0},
}

// PowerRail 通过 GPIO 为 I2C 外设供电的特性：传感器前拉高，传感器后拉低
type PowerRail struct {
	gpio  GPIO
	clock clock.Clock
	on    bool
}

// NewPowerRailOn 传感器前阶段：拉高并等待外设启动
func NewPowerRailOn(gpio GPIO, clk clock.Clock) *PowerRail {
	return &PowerRail{gpio: gpio, clock: clk, on: true}
}

// NewPowerRailOff 传感器后阶段：断电
func NewPowerRailOff(gpio GPIO, clk clock.Clock) *PowerRail {
	return &PowerRail{gpio: gpio, clock: clk, on: false}
}

func (p *PowerRail) Name() string {
	if p.on {
		return "power_rail_on"
	}
	return "power_rail_off"
}

func (p *PowerRail) Stage() Stage {
	if p.on {
		return StagePreSensor
	}
	return StagePostSensor
}

func (p *PowerRail) Tags() []nodeconfig.Tag {
	return []nodeconfig.Tag{nodeconfig.TagI2CDeviceOnIO13, nodeconfig.TagI2CDeviceOnIO0}
}

func (p *PowerRail) Run(ctx context.Context, env *Env) error {
	for _, pp := range powerPins {
		if !env.Features.Has(pp.tag) {
			continue
		}
		if err := p.gpio.SetOutput(pp.pin, p.on); err != nil {
			return fmt.Errorf("pin %d: %w", pp.pin, err)
		}
		if p.on {
			p.clock.Sleep(PowerSettle)
		}
	}
	return nil
}

// LogGPIO 宿主机上的 GPIO：只记录日志并保存引脚状态
type LogGPIO struct {
	Log  *zap.Logger
	Pins map[int]bool
}

// NewLogGPIO 创建日志 GPIO
func NewLogGPIO(log *zap.Logger) *LogGPIO {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogGPIO{Log: log, Pins: map[int]bool{}}
}

func (g *LogGPIO) SetOutput(pin int, high bool) error {
	g.Pins[pin] = high
	g.Log.Debug("gpio output", zap.Int("pin", pin), zap.Bool("high", high))
	return nil
}
