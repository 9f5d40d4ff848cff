package wake

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/clock"
)

// Sleeper 执行周期之间的睡眠
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper 通过时钟睡眠（测试中配合 clock.Fake）
type ClockSleeper struct {
	Clock clock.Clock
}

func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Clock.Sleep(d)
	return nil
}

// TimerSleeper 真实睡眠，可被 ctx 中断
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run 循环执行唤醒周期；cycles<=0 表示直到 ctx 取消。
// onReport 可为 nil。
func (c *Cycle) Run(ctx context.Context, sleeper Sleeper, cycles int, onReport func(Report)) error {
	for n := 0; cycles <= 0 || n < cycles; n++ {
		rep, err := c.Once(ctx)
		if err != nil {
			c.log.Error("wake cycle failed", zap.Error(err))
		}
		if onReport != nil {
			onReport(rep)
		}
		if cycles > 0 && n == cycles-1 {
			break
		}
		if err := sleeper.Sleep(ctx, rep.Sleep); err != nil {
			return err
		}
	}
	return nil
}
