package syncengine

import "errors"

// Outcome 一次配置同步的结果
type Outcome int

const (
	// NoOutcome 本次没有处理配置（例如上传返回其他状态码）
	NoOutcome Outcome = iota
	// Saved 配置已变化且已持久化
	Saved
	// CommitFailed 配置已暂存但存储层拒绝提交
	CommitFailed
	// SkippedUnchanged 跟踪字段均未变化，存储未改动
	SkippedUnchanged
	// RejectedForeignID 配置属于其他节点，未提交
	RejectedForeignID
	// RejectedInvalid 缺少 lastSeen 有效标记，存储未改动
	RejectedInvalid
	// CapacityExceeded 配置超过预留容量，存储未改动
	CapacityExceeded
	// FetchFailed 未能从协调端获得配置
	FetchFailed
)

var outcomeNames = map[Outcome]string{
	NoOutcome:         "none",
	Saved:             "saved",
	CommitFailed:      "commit_failed",
	SkippedUnchanged:  "skipped_unchanged",
	RejectedForeignID: "rejected_foreign_id",
	RejectedInvalid:   "rejected_invalid",
	CapacityExceeded:  "capacity_exceeded",
	FetchFailed:       "fetch_failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Succeeded 节点已持有与协调端一致的配置
func (o Outcome) Succeeded() bool {
	return o == Saved || o == SkippedUnchanged
}

// Err 将失败结果映射为错误分类，成功返回 nil
func (o Outcome) Err() error {
	switch o {
	case CommitFailed:
		return ErrCommitFailure
	case RejectedForeignID:
		return ErrForeignIdentifier
	case RejectedInvalid:
		return ErrInvalidPayload
	case CapacityExceeded:
		return ErrStoreCapacityExceeded
	case FetchFailed:
		return ErrFetchFailed
	}
	return nil
}

var (
	ErrFetchFailed           = errors.New("sync: fetch failed")
	ErrInvalidPayload        = errors.New("sync: invalid payload")
	ErrForeignIdentifier     = errors.New("sync: payload addressed to another node")
	ErrCommitFailure         = errors.New("sync: store commit failed")
	ErrStoreCapacityExceeded = errors.New("sync: store capacity exceeded")
)

// State 同步状态机的状态
type State int

const (
	StateIdle State = iota
	StateWifiConnecting
	StateFetching
	StateRegistering
	StateComparing
	StatePersisting
	StateSkipping
	StateDone
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateWifiConnecting: "wifi_connecting",
	StateFetching:       "fetching",
	StateRegistering:    "registering",
	StateComparing:      "comparing",
	StatePersisting:     "persisting",
	StateSkipping:       "skipping",
	StateDone:           "done",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
