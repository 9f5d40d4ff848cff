package netlink

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-node/internal/clock"
)

// scriptedLink 第 upAfter 次 Connected 调用开始返回 true
type scriptedLink struct {
	upAfter int
	polls   int
	begins  int
}

func (l *scriptedLink) Begin(context.Context, string, string) error {
	l.begins++
	return nil
}

func (l *scriptedLink) Connected(context.Context) bool {
	l.polls++
	return l.polls > l.upAfter
}

func TestConnect_AlreadyConnected(t *testing.T) {
	link := &scriptedLink{upAfter: 0}
	fake := clock.NewFake(time.Unix(0, 0))
	c := &Connector{Link: link, Clock: fake}

	tries, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, tries)
	assert.Equal(t, 0, link.begins)
	assert.Empty(t, fake.Sleeps())
}

func TestConnect_RetriesWithRebegin(t *testing.T) {
	link := &scriptedLink{upAfter: 25}
	fake := clock.NewFake(time.Unix(0, 0))
	attempts := 0
	c := &Connector{Link: link, Clock: fake, OnAttempt: func() { attempts++ }}

	tries, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, tries)
	assert.Equal(t, 25, attempts)
	assert.Equal(t, 3, link.begins, "begin at tries 0, 10, 20")
	assert.Equal(t, 25*DefaultPollInterval, fake.Elapsed())
}

func TestConnect_NoAttemptLimit(t *testing.T) {
	link := &scriptedLink{upAfter: 10000}
	fake := clock.NewFake(time.Unix(0, 0))
	c := &Connector{Link: link, Clock: fake, Backoff: ConstantBackoff(time.Second), RebeginEvery: 100}

	tries, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000, tries)
	assert.Equal(t, 100, link.begins)
	assert.Equal(t, 10000*time.Second, fake.Elapsed())
}

func TestConnect_HostShutdown(t *testing.T) {
	link := &scriptedLink{upAfter: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Connector{Link: link, Clock: clock.NewFake(time.Unix(0, 0))}
	_, err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHostLink(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	h := NewHostLink(ln.Addr().String(), time.Second)
	ctx := context.Background()
	assert.False(t, h.Connected(ctx), "not begun")
	require.NoError(t, h.Begin(ctx, "ssid", "pass"))
	assert.True(t, h.Connected(ctx))

	down := NewHostLink("127.0.0.1:1", 200*time.Millisecond)
	require.NoError(t, down.Begin(ctx, "", ""))
	assert.False(t, down.Connected(ctx))
}
