// Package identity 管理节点的永久 16 字节设备标识。
//
// 标识由基于时间的伪随机数生成，熵源质量低，不具备密码学安全性。
// 它只用于在协调端区分节点，不能作为认证凭据。
package identity

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/configstore"
	"github.com/taoyao-code/iot-node/internal/nvstore"
)

// ErrIdentityMissing 存储中没有设备标识
var ErrIdentityMissing = errors.New("identity: missing")

// RenderedLen 渲染后的标识长度：16*2 个十六进制字符 + 4 个连字符
const RenderedLen = nvstore.IdentityLen*2 + 4

// Seeder 随机种子来源
type Seeder func() int64

// TimingSeeder 以单调时钟纳秒数作为种子（对应固件中的 micros()）
func TimingSeeder() int64 {
	return time.Since(processStart).Nanoseconds() ^ time.Now().UnixNano()
}

var processStart = time.Now()

// Manager 设备标识管理器
type Manager struct {
	nv     nvstore.Store
	config *configstore.Store
	seed   Seeder
	log    *zap.Logger
}

// NewManager 创建标识管理器；seed 为 nil 时使用 TimingSeeder
func NewManager(config *configstore.Store, seed Seeder, log *zap.Logger) *Manager {
	if seed == nil {
		seed = TimingSeeder
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{nv: config.NV(), config: config, seed: seed, log: log}
}

// HasIdentity 标记字节与固定哨兵完全一致时返回 true
func (m *Manager) HasIdentity() bool {
	for i, want := range nvstore.Sentinel {
		b, err := m.nv.ReadByte(nvstore.MarkerOffset + i)
		if err != nil || b != want {
			return false
		}
	}
	return true
}

// Create 生成 16 字节伪随机标识（不写入存储）
func (m *Manager) Create() uuid.UUID {
	r := rand.New(rand.NewSource(m.seed()))
	var id uuid.UUID
	for i := range id {
		id[i] = byte(r.Intn(256))
	}
	return id
}

// Persist 写入哨兵与标识，不提交
func (m *Manager) Persist(id uuid.UUID) error {
	if err := nvstore.WriteRange(m.nv, nvstore.MarkerOffset, nvstore.Sentinel[:]); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := nvstore.WriteRange(m.nv, nvstore.IdentityOffset, id[:]); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// Load 读取已保存的标识
func (m *Manager) Load() (uuid.UUID, error) {
	if !m.HasIdentity() {
		return uuid.Nil, ErrIdentityMissing
	}
	raw, err := nvstore.ReadRange(m.nv, nvstore.IdentityOffset, nvstore.IdentityLen)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read identity: %w", err)
	}
	return uuid.FromBytes(raw)
}

// Render 小写十六进制 8-4-4-4-12 格式，固定 36 个字符
func Render(id uuid.UUID) string {
	return id.String()
}

// Bootstrap 若无标识则生成并保存标识与空配置，然后提交一次。
// 已有标识时不做任何操作，返回 created=false。
func (m *Manager) Bootstrap() (id uuid.UUID, created bool, err error) {
	if m.HasIdentity() {
		id, err = m.Load()
		return id, false, err
	}

	m.log.Info("identity missing, generating")
	id = m.Create()
	if err := m.Persist(id); err != nil {
		m.discard()
		return uuid.Nil, false, err
	}
	if err := m.config.Stage(configstore.EmptyConfig); err != nil {
		m.discard()
		return uuid.Nil, false, fmt.Errorf("write empty config: %w", err)
	}
	if !m.nv.Commit() {
		m.log.Error("identity commit failed", zap.String("id", Render(id)))
		m.discard()
		return uuid.Nil, false, configstore.ErrCommitFailed
	}
	m.log.Info("identity created", zap.String("id", Render(id)))
	return id, true, nil
}

// discard 丢弃未提交的标识，下次 Bootstrap 重新生成
func (m *Manager) discard() {
	r, ok := m.nv.(nvstore.Reverter)
	if !ok {
		return
	}
	if err := r.Revert(); err != nil {
		m.log.Warn("discard staged identity failed", zap.Error(err))
	}
}
