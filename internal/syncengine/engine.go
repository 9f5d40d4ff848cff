// Package syncengine 编排节点与协调端之间的注册、拉取、上传，
// 并决定新配置是否需要写入非易失存储。
package syncengine

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/coordinator"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
	"github.com/taoyao-code/iot-node/internal/nvstore"
)

// Coordinator 协调端访问能力
type Coordinator interface {
	GetConfig(ctx context.Context, nodeID string) (coordinator.Response, error)
	Register(ctx context.Context, nodeID string) (coordinator.Response, error)
	PostValues(ctx context.Context, nodeID string, body []byte) (coordinator.Response, error)
}

// Connector 网络关联能力
type Connector interface {
	Connect(ctx context.Context) (int, error)
}

// Engine 同步引擎。单线程使用，不做并发保护。
type Engine struct {
	store   *configstore.Store
	client  Coordinator
	link    Connector
	metrics *metrics.NodeMetrics
	log     *zap.Logger

	state   State
	OnState func(State)
}

// New 创建同步引擎；m 与 log 可为 nil
func New(store *configstore.Store, client Coordinator, link Connector, m *metrics.NodeMetrics, log *zap.Logger) *Engine {
	if m == nil {
		m = metrics.NewNodeMetrics(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, client: client, link: link, metrics: m, log: log}
}

// State 当前状态
func (e *Engine) State() State { return e.state }

func (e *Engine) enter(s State) {
	e.state = s
	if e.OnState != nil {
		e.OnState(s)
	}
}

// Connect 阻塞直到网络关联成功
func (e *Engine) Connect(ctx context.Context) error {
	e.enter(StateWifiConnecting)
	tries, err := e.link.Connect(ctx)
	if err != nil {
		return err
	}
	e.log.Debug("network associated", zap.Int("tries", tries))
	return nil
}

// FetchConfig 一次 GET；404 时以一次空 POST 注册。返回 ok=false 表示没有负载。
func (e *Engine) FetchConfig(ctx context.Context, nodeID string) ([]byte, bool) {
	body, failed := e.fetch(ctx, nodeID)
	return body, failed == NoOutcome
}

// fetch 返回负载，或失败结果 FetchFailed / CapacityExceeded
func (e *Engine) fetch(ctx context.Context, nodeID string) ([]byte, Outcome) {
	e.enter(StateFetching)
	resp, err := e.client.GetConfig(ctx, nodeID)
	e.countRequest("get_config", resp, err)
	if err != nil && !tooLarge(err) {
		e.log.Warn("fetch config failed", zap.String("node", nodeID), zap.Error(err))
		return nil, FetchFailed
	}

	switch resp.Status {
	case http.StatusOK:
		if tooLarge(err) {
			e.log.Error("config exceeds store capacity", zap.String("node", nodeID), zap.Error(err))
			return nil, CapacityExceeded
		}
		return resp.Body, NoOutcome
	case http.StatusNotFound:
		e.enter(StateRegistering)
		e.log.Info("node not registered, registering", zap.String("node", nodeID))
		reg, err := e.client.Register(ctx, nodeID)
		e.countRequest("register", reg, err)
		if err != nil && !tooLarge(err) {
			e.log.Warn("registration failed", zap.String("node", nodeID), zap.Error(err))
			return nil, FetchFailed
		}
		if reg.Status == http.StatusOK {
			if tooLarge(err) {
				e.log.Error("config exceeds store capacity", zap.String("node", nodeID), zap.Error(err))
				return nil, CapacityExceeded
			}
			return reg.Body, NoOutcome
		}
		e.log.Warn("registration rejected", zap.String("node", nodeID), zap.Int("code", reg.Status))
		return nil, FetchFailed
	default:
		e.log.Warn("fetch config rejected", zap.String("node", nodeID), zap.Int("code", resp.Status))
		return nil, FetchFailed
	}
}

func tooLarge(err error) bool { return errors.Is(err, coordinator.ErrBodyTooLarge) }

// DecideAndPersist 比较 old 与 next 的跟踪字段，决定是否写入并提交 next。
// 只有 next 中的 id 与本节点一致时才提交；否则丢弃暂存写入。
func (e *Engine) DecideAndPersist(old, next []byte, nodeID string) Outcome {
	e.enter(StateComparing)

	if !nodeconfig.IsValid(next) {
		e.log.Warn("config rejected: missing lastSeen", zap.Int("len", len(next)))
		return e.finish(RejectedInvalid)
	}

	changes := nodeconfig.Diff(old, next)
	if len(changes) == 0 {
		e.enter(StateSkipping)
		e.log.Debug("config unchanged")
		return e.finish(SkippedUnchanged)
	}
	for _, c := range changes {
		e.log.Info("config field changed", zap.String("field", c.Field), zap.String("old", c.Old), zap.String("new", c.New))
	}

	if uint64(len(next)) > uint64(e.store.Capacity()) {
		e.log.Error("config exceeds store capacity", zap.Int("len", len(next)), zap.Uint32("capacity", e.store.Capacity()))
		return e.finish(CapacityExceeded)
	}

	e.enter(StatePersisting)
	if err := e.store.Stage(next); err != nil {
		e.revert()
		if errors.Is(err, nvstore.ErrCapacityExceeded) {
			return e.finish(CapacityExceeded)
		}
		e.log.Error("stage config failed", zap.Error(err))
		return e.finish(CommitFailed)
	}

	if got := nodeconfig.ID(next); got != nodeID {
		e.log.Warn("config addressed to another node, not committing",
			zap.String("node", nodeID), zap.String("config_id", got))
		e.revert()
		return e.finish(RejectedForeignID)
	}

	if !e.store.NV().Commit() {
		e.metrics.StoreCommitTotal.WithLabelValues("error").Inc()
		e.log.Error("store commit failed")
		e.revert()
		return e.finish(CommitFailed)
	}
	e.metrics.StoreCommitTotal.WithLabelValues("ok").Inc()
	e.log.Info("config saved", zap.Int("len", len(next)))
	return e.finish(Saved)
}

// PersistIfNewer 以存储中的当前配置为基线执行 DecideAndPersist。
// 存储中的配置无法读取（长度越界等）时以空基线比较。
func (e *Engine) PersistIfNewer(next []byte, nodeID string) Outcome {
	old, err := e.store.Load()
	if err != nil {
		e.log.Warn("stored config unreadable, using empty baseline", zap.Error(err))
		old = nil
	}
	return e.DecideAndPersist(old, next, nodeID)
}

// UpdateConfig 关联网络、拉取配置并按需保存
func (e *Engine) UpdateConfig(ctx context.Context, nodeID string) Outcome {
	if err := e.Connect(ctx); err != nil {
		return e.finish(FetchFailed)
	}
	body, failed := e.fetch(ctx, nodeID)
	if failed != NoOutcome {
		return e.finish(failed)
	}
	return e.PersistIfNewer(body, nodeID)
}

// UploadResult 一次上传的结果
type UploadResult struct {
	Status    int     // 上传响应码，传输失败为 0
	Outcome   Outcome // 对返回配置的处理结果，未处理为 NoOutcome
	Refetched bool    // 是否因 500 重新拉取了配置
	Err       error
}

// PostValues 上传测量值。200 的响应体按配置处理；
// 500 视为节点被迁移到其他协调端，重新拉取一次配置。其他状态只记录日志。
func (e *Engine) PostValues(ctx context.Context, payload []byte, nodeID string) UploadResult {
	resp, err := e.client.PostValues(ctx, nodeID, payload)
	e.countRequest("post_values", resp, err)
	if err != nil && !tooLarge(err) {
		e.log.Warn("upload failed", zap.String("node", nodeID), zap.Error(err))
		e.enter(StateDone)
		return UploadResult{Err: err}
	}

	res := UploadResult{Status: resp.Status}
	switch resp.Status {
	case http.StatusOK:
		if tooLarge(err) {
			e.log.Error("config exceeds store capacity", zap.String("node", nodeID), zap.Error(err))
			res.Outcome = e.finish(CapacityExceeded)
			break
		}
		res.Outcome = e.PersistIfNewer(resp.Body, nodeID)
	case http.StatusInternalServerError:
		e.log.Warn("upload rejected with 500, refetching config", zap.String("node", nodeID))
		res.Refetched = true
		if body, failed := e.fetch(ctx, nodeID); failed == NoOutcome {
			res.Outcome = e.PersistIfNewer(body, nodeID)
		} else {
			res.Outcome = e.finish(failed)
		}
	default:
		e.log.Warn("upload rejected", zap.String("node", nodeID), zap.Int("code", resp.Status))
		e.enter(StateDone)
	}
	return res
}

func (e *Engine) finish(o Outcome) Outcome {
	e.metrics.SyncOutcomeTotal.WithLabelValues(o.String()).Inc()
	e.enter(StateDone)
	return o
}

func (e *Engine) revert() {
	r, ok := e.store.NV().(nvstore.Reverter)
	if !ok {
		return
	}
	if err := r.Revert(); err != nil {
		e.log.Warn("discard staged config failed", zap.Error(err))
	}
}

func (e *Engine) countRequest(op string, resp coordinator.Response, err error) {
	code := "error"
	if err == nil || tooLarge(err) {
		code = strconv.Itoa(resp.Status)
	}
	e.metrics.RequestTotal.WithLabelValues(op, code).Inc()
}
