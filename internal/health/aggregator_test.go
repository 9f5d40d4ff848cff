package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Latency: time.Millisecond}
}

func TestOverall(t *testing.T) {
	cases := []struct {
		name     string
		statuses []Status
		want     Status
		ready    bool
	}{
		{"no checks", nil, StatusHealthy, true},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy, true},
		{"store degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded, true},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator()
			for i, s := range tc.statuses {
				agg.AddChecker(&mockChecker{name: string(rune('a' + i)), status: s})
			}
			assert.Equal(t, tc.want, agg.OverallStatus(context.Background()))
			assert.Equal(t, tc.ready, agg.Ready(context.Background()))
		})
	}
}

func TestAggregatorCheckAllKeyedByName(t *testing.T) {
	agg := NewAggregator(&mockChecker{"store", StatusHealthy})
	agg.AddChecker(nil)
	agg.AddChecker(&mockChecker{"coordinator", StatusDegraded})

	results := agg.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["store"].Status)
	assert.Equal(t, StatusDegraded, results["coordinator"].Status)
	assert.True(t, agg.Alive())
}

func TestAggregatorPerCheckTimeout(t *testing.T) {
	blocked := CheckerFunc{CheckName: "slow", Fn: func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	}}
	agg := NewAggregator(blocked, &mockChecker{"fast", StatusHealthy})
	agg.timeout = 20 * time.Millisecond

	start := time.Now()
	report := agg.Report(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["slow"].Message)
	assert.Equal(t, StatusHealthy, report.Checks["fast"].Status)
	assert.False(t, report.Timestamp.IsZero())
}
