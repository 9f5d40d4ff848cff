package syncengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/coordinator"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nvstore"
)

const selfID = "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"

// fakeCoordinator 按顺序返回预设响应，并记录调用
type fakeCoordinator struct {
	get, register, values []reply
	calls                 []string
	uploads               [][]byte
}

type reply struct {
	status int
	body   string
	err    error
}

func pop(q *[]reply) (coordinator.Response, error) {
	if len(*q) == 0 {
		return coordinator.Response{}, errors.New("unexpected call")
	}
	r := (*q)[0]
	*q = (*q)[1:]
	if r.err != nil {
		return coordinator.Response{Status: r.status}, r.err
	}
	return coordinator.Response{Status: r.status, Body: []byte(r.body)}, nil
}

func (f *fakeCoordinator) GetConfig(_ context.Context, id string) (coordinator.Response, error) {
	f.calls = append(f.calls, "GET config "+id)
	return pop(&f.get)
}

func (f *fakeCoordinator) Register(_ context.Context, id string) (coordinator.Response, error) {
	f.calls = append(f.calls, "POST config "+id)
	return pop(&f.register)
}

func (f *fakeCoordinator) PostValues(_ context.Context, id string, body []byte) (coordinator.Response, error) {
	f.calls = append(f.calls, "POST values "+id)
	f.uploads = append(f.uploads, body)
	return pop(&f.values)
}

type fakeLink struct{ connects int }

func (l *fakeLink) Connect(context.Context) (int, error) {
	l.connects++
	return 0, nil
}

type fixture struct {
	nv     *nvstore.MemStore
	cs     *configstore.Store
	coord  *fakeCoordinator
	link   *fakeLink
	m      *metrics.NodeMetrics
	engine *Engine
	states []State
}

func newFixture(t *testing.T, stored string) *fixture {
	t.Helper()
	return newFixtureCap(t, stored, nvstore.DefaultCapacity)
}

func newFixtureCap(t *testing.T, stored string, capacity int) *fixture {
	t.Helper()
	f := &fixture{
		nv:    nvstore.NewMemStore(capacity),
		coord: &fakeCoordinator{},
		link:  &fakeLink{},
		m:     metrics.NewNodeMetrics(nil),
	}
	f.cs = configstore.New(f.nv, configstore.PayloadFirst)
	require.NoError(t, f.cs.Save([]byte(stored)))
	f.engine = New(f.cs, f.coord, f.link, f.m, nil)
	f.engine.OnState = func(s State) { f.states = append(f.states, s) }
	return f
}

func (f *fixture) stored(t *testing.T) string {
	t.Helper()
	b, err := f.cs.Load()
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) durableConfig(t *testing.T) string {
	t.Helper()
	img := nvstore.NewMemStoreFrom(f.nv.Capacity(), f.nv.Durable())
	b, err := configstore.New(img, configstore.PayloadFirst).Load()
	require.NoError(t, err)
	return string(b)
}

func cfg(id string, samples int, sensors string) string {
	return fmt.Sprintf(`{"id":%q,"lastSeen":"1","numberOfSamples":%d,"sleepTimeMillis":60000,"ipv4address":"","activeSensors":%s,"activeFeatures":[],"dataId":1}`,
		id, samples, sensors)
}

func TestDecide_UnchangedLeavesStoreUntouched(t *testing.T) {
	for samples := 1; samples <= 5; samples++ {
		old := cfg(selfID, samples, `["BME280_TEMP"]`)
		// 非跟踪字段（lastSeen/dataId/id）不同，跟踪字段相同
		next := strings.Replace(strings.Replace(old, `"lastSeen":"1"`, `"lastSeen":"99"`, 1), `"dataId":1`, `"dataId":2`, 1)

		f := newFixture(t, old)
		before := f.nv.Staged()
		commits := f.nv.Commits()

		out := f.engine.DecideAndPersist([]byte(old), []byte(next), selfID)
		assert.Equal(t, SkippedUnchanged, out)
		assert.Equal(t, before, f.nv.Staged())
		assert.Equal(t, before, f.nv.Durable())
		assert.Equal(t, commits, f.nv.Commits())
		assert.Equal(t, StateSkipping, f.states[len(f.states)-2])
	}
}

func TestDecide_ChangedOwnIDIsSaved(t *testing.T) {
	nexts := []string{
		cfg(selfID, 2, `[]`),
		cfg(selfID, 1, `["BME280_TEMP","BME280_DEW"]`),
		strings.Replace(cfg(selfID, 1, `[]`), `"sleepTimeMillis":60000`, `"sleepTimeMillis":1000`, 1),
		strings.Replace(cfg(selfID, 1, `[]`), `"ipv4address":""`, `"ipv4address":"10.1.1.1"`, 1),
		strings.Replace(cfg(selfID, 1, `[]`), `"activeFeatures":[]`, `"activeFeatures":["I2C_DEVICE_ON_IO0"]`, 1),
	}
	old := cfg(selfID, 1, `[]`)
	for _, next := range nexts {
		f := newFixture(t, old)
		out := f.engine.DecideAndPersist([]byte(old), []byte(next), selfID)
		require.Equal(t, Saved, out, next)

		f.nv.PowerCycle()
		n, err := f.cs.ReadLength()
		require.NoError(t, err)
		assert.Equal(t, uint32(len(next)), n)
		got, err := f.cs.Read(n)
		require.NoError(t, err)
		assert.Equal(t, next, string(got))
	}
}

func TestDecide_ForeignIDNotCommitted(t *testing.T) {
	old := cfg(selfID, 1, `[]`)
	next := cfg("someone-else", 4, `["BME280_BARO"]`)
	f := newFixture(t, old)
	commits := f.nv.Commits()

	out := f.engine.DecideAndPersist([]byte(old), []byte(next), selfID)
	assert.Equal(t, RejectedForeignID, out)
	assert.ErrorIs(t, out.Err(), ErrForeignIdentifier)
	assert.Equal(t, commits, f.nv.Commits())
	assert.Equal(t, old, f.durableConfig(t))
	assert.Equal(t, old, f.stored(t), "staged copy discarded")
}

func TestDecide_InvalidPayloadUntouched(t *testing.T) {
	old := cfg(selfID, 1, `[]`)
	invalid := []string{
		strings.Replace(cfg(selfID, 9, `[]`), `"lastSeen":"1",`, ``, 1),
		`{"id":"` + selfID + `","lastSeen":""}`,
		`not json at all lastSeen`,
		``,
	}
	for _, next := range invalid {
		f := newFixture(t, old)
		before := f.nv.Staged()
		out := f.engine.DecideAndPersist([]byte(old), []byte(next), selfID)
		assert.Equal(t, RejectedInvalid, out, next)
		assert.Equal(t, before, f.nv.Staged())
	}
}

func TestDecide_CommitFailure(t *testing.T) {
	old := `{}`
	f := newFixture(t, old)
	f.nv.FailCommit = true

	out := f.engine.DecideAndPersist([]byte(old), []byte(cfg(selfID, 1, `[]`)), selfID)
	assert.Equal(t, CommitFailed, out)
	assert.ErrorIs(t, out.Err(), ErrCommitFailure)
	assert.Equal(t, old, f.durableConfig(t))
	assert.Equal(t, old, f.stored(t), "failed commit leaves no staged config")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.StoreCommitTotal.WithLabelValues("error")))

	f.nv.FailCommit = false
	next := cfg(selfID, 1, `[]`)
	assert.Equal(t, Saved, f.engine.PersistIfNewer([]byte(next), selfID))
	assert.Equal(t, next, f.durableConfig(t))
}

func TestDecide_CapacityExceeded(t *testing.T) {
	f := newFixture(t, `{}`)
	pad := strings.Repeat("x", int(f.cs.Capacity()))
	next := strings.Replace(cfg(selfID, 1, `[]`), `"dataId":1`, `"dataId":"`+pad+`"`, 1)
	before := f.nv.Staged()

	out := f.engine.DecideAndPersist([]byte(`{}`), []byte(next), selfID)
	assert.Equal(t, CapacityExceeded, out)
	assert.Equal(t, before, f.nv.Staged())
}

func TestFetch_404RegistersAndSaves(t *testing.T) {
	body := `{"id":"` + selfID + `","lastSeen":"1","numberOfSamples":1,"sleepTimeMillis":60000,"ipv4address":"","activeSensors":[],"activeFeatures":[]}`
	f := newFixture(t, `{}`)
	f.coord.get = []reply{{status: http.StatusNotFound}}
	f.coord.register = []reply{{status: http.StatusOK, body: body}}

	out := f.engine.UpdateConfig(context.Background(), selfID)
	assert.Equal(t, Saved, out)
	assert.Equal(t, []string{"GET config " + selfID, "POST config " + selfID}, f.coord.calls)
	assert.Equal(t, body, f.durableConfig(t))
	assert.Equal(t, 1, f.link.connects)
	assert.Equal(t, []State{StateWifiConnecting, StateFetching, StateRegistering, StateComparing, StatePersisting, StateDone}, f.states)
}

func TestFetch_Branches(t *testing.T) {
	cases := []struct {
		name     string
		get      []reply
		register []reply
		wantOK   bool
		calls    int
	}{
		{"200", []reply{{status: 200, body: `{"a":1}`}}, nil, true, 1},
		{"404 then 500", []reply{{status: 404}}, []reply{{status: 500}}, false, 2},
		{"404 then transport error", []reply{{status: 404}}, []reply{{err: errors.New("reset")}}, false, 2},
		{"401", []reply{{status: 401}}, nil, false, 1},
		{"500", []reply{{status: 500}}, nil, false, 1},
		{"transport error", []reply{{err: errors.New("timeout")}}, nil, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, `{}`)
			f.coord.get = tc.get
			f.coord.register = tc.register
			body, ok := f.engine.FetchConfig(context.Background(), selfID)
			assert.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, `{"a":1}`, string(body))
			}
			assert.Len(t, f.coord.calls, tc.calls)
		})
	}
}

func TestUpdateConfig_FetchFailed(t *testing.T) {
	f := newFixture(t, `{}`)
	f.coord.get = []reply{{status: http.StatusBadGateway}}
	out := f.engine.UpdateConfig(context.Background(), selfID)
	assert.Equal(t, FetchFailed, out)
	assert.False(t, out.Succeeded())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.SyncOutcomeTotal.WithLabelValues("fetch_failed")))
}

func TestPostValues_200PiggybacksConfig(t *testing.T) {
	old := cfg(selfID, 1, `["BME280_TEMP"]`)
	next := cfg(selfID, 3, `["BME280_TEMP"]`)
	f := newFixture(t, old)
	f.coord.values = []reply{{status: 200, body: next}}

	res := f.engine.PostValues(context.Background(), []byte(`{"dataId":1,"values":{}}`), selfID)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, Saved, res.Outcome)
	assert.False(t, res.Refetched)
	assert.Equal(t, next, f.durableConfig(t))
}

func TestPostValues_500RefetchForeign(t *testing.T) {
	old := cfg(selfID, 1, `["BME280_TEMP"]`)
	f := newFixture(t, old)
	before := f.nv.Durable()
	f.coord.values = []reply{{status: 500}}
	f.coord.get = []reply{{status: 200, body: cfg("other-node", 2, `[]`)}}

	res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
	assert.True(t, res.Refetched)
	assert.Equal(t, RejectedForeignID, res.Outcome)
	assert.Equal(t, before, f.nv.Durable())
	assert.Equal(t, []string{"POST values " + selfID, "GET config " + selfID}, f.coord.calls)
}

func TestPostValues_500RefetchRegisters(t *testing.T) {
	f := newFixture(t, cfg(selfID, 1, `[]`))
	f.coord.values = []reply{{status: 500}}
	f.coord.get = []reply{{status: 404}}
	f.coord.register = []reply{{status: 200, body: cfg(selfID, 7, `[]`)}}

	res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
	assert.Equal(t, Saved, res.Outcome)
	assert.Equal(t, cfg(selfID, 7, `[]`), f.durableConfig(t))
}

func TestPostValues_500RefetchFails(t *testing.T) {
	f := newFixture(t, cfg(selfID, 1, `[]`))
	f.coord.values = []reply{{status: 500}}
	f.coord.get = []reply{{status: 503}}

	res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
	assert.Equal(t, FetchFailed, res.Outcome)
}

func TestPostValues_OtherCodesNoop(t *testing.T) {
	for _, code := range []int{201, 400, 401, 404, 502} {
		f := newFixture(t, cfg(selfID, 1, `[]`))
		before := f.nv.Staged()
		f.coord.values = []reply{{status: code, body: cfg(selfID, 9, `[]`)}}

		res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
		assert.Equal(t, code, res.Status)
		assert.Equal(t, NoOutcome, res.Outcome)
		assert.Len(t, f.coord.calls, 1)
		assert.Equal(t, before, f.nv.Staged())
	}
}

func TestPostValues_TransportError(t *testing.T) {
	f := newFixture(t, `{}`)
	f.coord.values = []reply{{err: errors.New("refused")}}
	res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
	assert.Error(t, res.Err)
	assert.Equal(t, 0, res.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RequestTotal.WithLabelValues("post_values", "error")))
}

func TestPersistIfNewer_UnreadableBaseline(t *testing.T) {
	f := newFixture(t, `{}`)
	// 长度字段被破坏（超出容量）
	require.NoError(t, nvstore.WriteRange(f.nv, nvstore.LengthOffset, []byte{0xff, 0xff, 0xff, 0xff}))
	out := f.engine.PersistIfNewer([]byte(cfg(selfID, 1, `[]`)), selfID)
	assert.Equal(t, Saved, out)
	assert.Equal(t, cfg(selfID, 1, `[]`), f.stored(t))
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "saved", Saved.String())
	assert.Equal(t, "none", NoOutcome.String())
	assert.Equal(t, "none", Outcome(0).String())
	assert.Equal(t, "unknown", Outcome(99).String())
	assert.Nil(t, NoOutcome.Err())
	assert.False(t, NoOutcome.Succeeded())
	assert.True(t, SkippedUnchanged.Succeeded())
	assert.Nil(t, Saved.Err())
	assert.Equal(t, "registering", StateRegistering.String())
}

var errTooLarge = fmt.Errorf("GET /config: %w", coordinator.ErrBodyTooLarge)

func TestOversizedBodyIsCapacityExceeded(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		f := newFixture(t, `{}`)
		before := f.nv.Staged()
		f.coord.get = []reply{{status: http.StatusOK, err: errTooLarge}}

		assert.Equal(t, CapacityExceeded, f.engine.UpdateConfig(context.Background(), selfID))
		assert.Equal(t, before, f.nv.Staged())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RequestTotal.WithLabelValues("get_config", "200")))
	})

	t.Run("registration", func(t *testing.T) {
		f := newFixture(t, `{}`)
		f.coord.get = []reply{{status: http.StatusNotFound}}
		f.coord.register = []reply{{status: http.StatusOK, err: errTooLarge}}

		assert.Equal(t, CapacityExceeded, f.engine.UpdateConfig(context.Background(), selfID))
	})

	t.Run("upload response", func(t *testing.T) {
		f := newFixture(t, cfg(selfID, 1, `[]`))
		f.coord.values = []reply{{status: http.StatusOK, err: errTooLarge}}

		res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
		assert.NoError(t, res.Err)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, CapacityExceeded, res.Outcome)
	})

	t.Run("500 refetch", func(t *testing.T) {
		f := newFixture(t, cfg(selfID, 1, `[]`))
		f.coord.values = []reply{{status: http.StatusInternalServerError}}
		f.coord.get = []reply{{status: http.StatusOK, err: errTooLarge}}

		res := f.engine.PostValues(context.Background(), []byte(`{}`), selfID)
		assert.True(t, res.Refetched)
		assert.Equal(t, CapacityExceeded, res.Outcome)
	})
}

// 通过真实 HTTP 客户端，响应体上限取自存储的配置容量
func TestUpdateConfig_BodySizedByStoreCapacity(t *testing.T) {
	var body string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	newEngine := func(f *fixture) *Engine {
		c := coordinator.NewClient(ts.Client(), "127.0.0.1", 0, "node", "node", time.Second)
		c.BaseURL = ts.URL
		c.MaxBody = int(f.cs.Capacity())
		return New(f.cs, c, f.link, f.m, nil)
	}
	withPad := func(n int) string {
		return strings.Replace(cfg(selfID, 2, `[]`), `"dataId":1`, `"dataId":"`+strings.Repeat("x", n)+`"`, 1)
	}

	t.Run("larger than capacity", func(t *testing.T) {
		f := newFixture(t, `{}`)
		body = withPad(1500)
		require.Greater(t, len(body), int(f.cs.Capacity()))
		before := f.nv.Durable()

		assert.Equal(t, CapacityExceeded, newEngine(f).UpdateConfig(context.Background(), selfID))
		assert.Equal(t, before, f.nv.Durable())
	})

	t.Run("fits a larger store", func(t *testing.T) {
		f := newFixtureCap(t, `{}`, 2048)
		body = withPad(1500)
		require.Greater(t, len(body), coordinator.MaxBodyBytes)

		assert.Equal(t, Saved, newEngine(f).UpdateConfig(context.Background(), selfID))
		assert.Equal(t, body, f.durableConfig(t))
	})
}
