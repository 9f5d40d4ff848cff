package plugin

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/clock"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

// SeaLevelHPa ISA 标准海平面气压
const SeaLevelHPa = 1013.25

const (
	bme280InitRetry  = time.Second
	bme280RereadWait = 50 * time.Millisecond
)

// Reading 一次环境读数
type Reading struct {
	PressureHPa  float64
	TemperatureC float64
	HumidityPct  float64
}

// Environment BME280 读取能力（驱动在外部）
type Environment interface {
	// Begin 初始化传感器，未检测到时返回 false
	Begin() bool
	Read() (Reading, error)
}

// BME280 温度/湿度/气压传感器插件，派生海拔与露点
type BME280 struct {
	env   Environment
	clock clock.Clock
	log   *zap.Logger
}

// NewBME280 创建 BME280 插件
func NewBME280(env Environment, clk clock.Clock, log *zap.Logger) *BME280 {
	if log == nil {
		log = zap.NewNop()
	}
	return &BME280{env: env, clock: clk, log: log}
}

func (b *BME280) Name() string { return "bme280" }

func (b *BME280) Stage() Stage { return StageSensor }

func (b *BME280) Tags() []nodeconfig.Tag {
	return []nodeconfig.Tag{
		nodeconfig.TagBME280Temp,
		nodeconfig.TagBME280Hygro,
		nodeconfig.TagBME280Baro,
		nodeconfig.TagBME280Alti,
		nodeconfig.TagBME280Dew,
	}
}

// Run 等待传感器就绪后读取；外设由供电特性上电时读取两次，首次读数不可靠
func (b *BME280) Run(ctx context.Context, env *Env) error {
	for !b.env.Begin() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.log.Warn("bme280 not found, retrying")
		b.clock.Sleep(bme280InitRetry)
	}

	r, err := b.env.Read()
	if err != nil {
		return err
	}
	if env.Features.Any(nodeconfig.TagI2CDeviceOnIO13, nodeconfig.TagI2CDeviceOnIO0) {
		b.clock.Sleep(bme280RereadWait)
		if r, err = b.env.Read(); err != nil {
			return err
		}
	}

	if env.Sensors.Has(nodeconfig.TagBME280Temp) {
		env.Results.Set(nodeconfig.TagBME280Temp, format(r.TemperatureC))
	}
	if env.Sensors.Has(nodeconfig.TagBME280Hygro) {
		env.Results.Set(nodeconfig.TagBME280Hygro, format(r.HumidityPct))
	}
	if env.Sensors.Has(nodeconfig.TagBME280Baro) {
		env.Results.Set(nodeconfig.TagBME280Baro, format(r.PressureHPa))
	}
	if env.Sensors.Has(nodeconfig.TagBME280Alti) {
		env.Results.Set(nodeconfig.TagBME280Alti, format(Altitude(r.PressureHPa, SeaLevelHPa)))
	}
	if env.Sensors.Has(nodeconfig.TagBME280Dew) {
		env.Results.Set(nodeconfig.TagBME280Dew, format(DewPoint(r.TemperatureC, r.HumidityPct)))
	}
	return nil
}

// Altitude 由气压估算海拔（米）
func Altitude(pressureHPa, seaLevelHPa float64) float64 {
	if pressureHPa <= 0 || seaLevelHPa <= 0 {
		return math.NaN()
	}
	const feetToMeters = 0.3048
	return 145366.45 * (1 - math.Pow(pressureHPa/seaLevelHPa, 0.190284)) * feetToMeters
}

// DewPoint Magnus 公式计算露点（摄氏度）
func DewPoint(tempC, humidityPct float64) float64 {
	if humidityPct <= 0 {
		return math.NaN()
	}
	const b, c = 17.62, 243.12
	gamma := math.Log(humidityPct/100) + b*tempC/(c+tempC)
	return c * gamma / (b - gamma)
}

// format 两位小数
func format(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ErrNoReading 模拟环境未配置读数
var ErrNoReading = errors.New("plugin: no reading")

// StaticEnvironment 宿主机上的 BME280 替身，返回固定读数
type StaticEnvironment struct {
	Present bool
	Reading Reading
}

func (s *StaticEnvironment) Begin() bool { return s.Present }

func (s *StaticEnvironment) Read() (Reading, error) {
	if !s.Present {
		return Reading{}, ErrNoReading
	}
	return s.Reading, nil
}
