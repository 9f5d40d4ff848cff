// Package registry 保存协调端已知的节点及其下发配置。
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

// ErrNotFound 节点未注册
var ErrNotFound = errors.New("registry: node not found")

// Template 节点可调整的配置项（下发时补充 id、dataId、lastSeen）
type Template struct {
	NumberOfSamples int      `json:"numberOfSamples" yaml:"numberOfSamples"`
	SleepTimeMillis uint32   `json:"sleepTimeMillis" yaml:"sleepTimeMillis"`
	IPv4Address     string   `json:"ipv4address,omitempty" yaml:"ipv4address"`
	ActiveSensors   []string `json:"activeSensors" yaml:"activeSensors"`
	ActiveFeatures  []string `json:"activeFeatures" yaml:"activeFeatures"`
}

// Node 已注册节点
type Node struct {
	ID         string            `json:"id"`
	DataID     int64             `json:"dataId"`
	Template   Template          `json:"config"`
	LastSeen   time.Time         `json:"lastSeen"`
	LastValues map[string]string `json:"lastValues,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ConfigJSON 生成下发给节点的配置
func (n *Node) ConfigJSON() ([]byte, error) {
	c := nodeconfig.Config{
		ID:              n.ID,
		NumberOfSamples: n.Template.NumberOfSamples,
		SleepTimeMillis: n.Template.SleepTimeMillis,
		ActiveSensors:   n.Template.ActiveSensors,
		ActiveFeatures:  n.Template.ActiveFeatures,
		DataID:          json.RawMessage(strconv.FormatInt(n.DataID, 10)),
	}
	if n.Template.IPv4Address != "" {
		c.IPv4Address = json.RawMessage(strconv.Quote(n.Template.IPv4Address))
	}
	seen := n.LastSeen
	if seen.IsZero() {
		seen = n.UpdatedAt
	}
	c.LastSeen = json.RawMessage(strconv.Quote(seen.UTC().Format(time.RFC3339Nano)))

	b, err := c.Marshal()
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return b, nil
}

// Registry 节点注册表
type Registry interface {
	// Register 不存在时以 tmpl 创建节点；已存在时原样返回，created=false
	Register(ctx context.Context, id string, tmpl Template, at time.Time) (node *Node, created bool, err error)
	Get(ctx context.Context, id string) (*Node, error)
	// Touch 刷新 lastSeen 并返回节点
	Touch(ctx context.Context, id string, at time.Time) (*Node, error)
	// RecordValues 保存最近一次测量值并刷新 lastSeen
	RecordValues(ctx context.Context, id string, values map[string]string, at time.Time) (*Node, error)
	UpdateTemplate(ctx context.Context, id string, tmpl Template, at time.Time) (*Node, error)
	List(ctx context.Context) ([]*Node, error)
	Count(ctx context.Context) (int64, error)
}

// Normalize 将 nil 列表替换为空列表
func (t Template) Normalize() Template {
	if t.ActiveSensors == nil {
		t.ActiveSensors = []string{}
	}
	if t.ActiveFeatures == nil {
		t.ActiveFeatures = []string{}
	}
	return t
}
