package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	f.Sleep(500 * time.Millisecond)
	f.Sleep(time.Second)
	f.Sleep(-time.Second)

	assert.Equal(t, start.Add(1500*time.Millisecond), f.Now())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, -time.Second}, f.Sleeps())
	assert.Equal(t, 500*time.Millisecond, f.Elapsed())
}
