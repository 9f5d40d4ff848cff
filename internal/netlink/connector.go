// Package netlink 负责节点的网络关联（固件中的 WiFi 连接）。
package netlink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/clock"
)

// Link 网络关联能力
type Link interface {
	// Begin 发起（或重新发起）关联
	Begin(ctx context.Context, ssid, pass string) error
	// Connected 当前是否已关联
	Connected(ctx context.Context) bool
}

// Backoff 两次轮询之间的等待策略
type Backoff interface {
	Next(attempt int) time.Duration
}

// ConstantBackoff 固定间隔
type ConstantBackoff time.Duration

func (b ConstantBackoff) Next(int) time.Duration { return time.Duration(b) }

// Connector 无限重试直到关联成功。
// 无人值守节点没有其他可做的事，断电是唯一的终止方式；
// ctx 取消仅用于宿主进程退出。
type Connector struct {
	Link         Link
	SSID         string
	Pass         string
	Clock        clock.Clock
	Backoff      Backoff
	RebeginEvery int // 每 N 次轮询重新发起一次关联
	Log          *zap.Logger

	// OnAttempt 每次轮询回调（指标）
	OnAttempt func()
}

// DefaultPollInterval 固件轮询间隔
const DefaultPollInterval = 500 * time.Millisecond

// DefaultRebeginEvery 固件每 10 次轮询重新调用 WiFi.begin
const DefaultRebeginEvery = 10

// Connect 阻塞直到关联成功，返回轮询次数
func (c *Connector) Connect(ctx context.Context) (int, error) {
	clk := c.Clock
	if clk == nil {
		clk = clock.Real()
	}
	backoff := c.Backoff
	if backoff == nil {
		backoff = ConstantBackoff(DefaultPollInterval)
	}
	every := c.RebeginEvery
	if every <= 0 {
		every = DefaultRebeginEvery
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	tries := 0
	for !c.Link.Connected(ctx) {
		if err := ctx.Err(); err != nil {
			return tries, err
		}
		if c.OnAttempt != nil {
			c.OnAttempt()
		}
		if tries%every == 0 {
			log.Debug("begin association", zap.String("ssid", c.SSID), zap.Int("tries", tries))
			if err := c.Link.Begin(ctx, c.SSID, c.Pass); err != nil {
				log.Warn("association begin failed", zap.Error(err), zap.Int("tries", tries))
			}
		}
		clk.Sleep(backoff.Next(tries))
		tries++
	}
	log.Debug("associated", zap.Int("tries", tries))
	return tries, nil
}
