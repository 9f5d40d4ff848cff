// Package nodeconfig 描述协调端下发给节点的 JSON 配置及其比较规则。
package nodeconfig

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// 配置 JSON 字段名
const (
	KeyID              = "id"
	KeyNumberOfSamples = "numberOfSamples"
	KeySleepTimeMillis = "sleepTimeMillis"
	KeyIPv4Address     = "ipv4address"
	KeyActiveSensors   = "activeSensors"
	KeyActiveFeatures  = "activeFeatures"
	KeyDataID          = "dataId"
	KeyLastSeen        = "lastSeen"
)

// TrackedFields 决定配置是否发生实质变化的五个字段
var TrackedFields = []string{
	KeyNumberOfSamples,
	KeySleepTimeMillis,
	KeyIPv4Address,
	KeyActiveSensors,
	KeyActiveFeatures,
}

// ErrNotObject 负载不是 JSON 对象
var ErrNotObject = errors.New("nodeconfig: payload is not a JSON object")

// Config 节点配置。数字/字符串混用的字段保留原始 JSON。
type Config struct {
	ID              string          `json:"id"`
	NumberOfSamples int             `json:"numberOfSamples"`
	SleepTimeMillis uint32          `json:"sleepTimeMillis"`
	IPv4Address     json.RawMessage `json:"ipv4address,omitempty"`
	ActiveSensors   []string        `json:"activeSensors"`
	ActiveFeatures  []string        `json:"activeFeatures"`
	DataID          json.RawMessage `json:"dataId,omitempty"`
	LastSeen        json.RawMessage `json:"lastSeen,omitempty"`
}

// Parse 解析配置。空对象 {} 合法，得到零值配置。
// 数字字段容忍字符串形式（"60000"），与固件的宽松解析一致。
func Parse(payload []byte) (*Config, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrNotObject
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	c := &Config{
		ID:              root.Get(KeyID).String(),
		NumberOfSamples: int(root.Get(KeyNumberOfSamples).Int()),
		SleepTimeMillis: uint32(root.Get(KeySleepTimeMillis).Uint()),
		IPv4Address:     rawOf(root.Get(KeyIPv4Address)),
		ActiveSensors:   stringsOf(root.Get(KeyActiveSensors)),
		ActiveFeatures:  stringsOf(root.Get(KeyActiveFeatures)),
		DataID:          rawOf(root.Get(KeyDataID)),
		LastSeen:        rawOf(root.Get(KeyLastSeen)),
	}
	return c, nil
}

// Marshal 序列化配置（协调端下发使用）
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.ActiveSensors == nil {
		out.ActiveSensors = []string{}
	}
	if out.ActiveFeatures == nil {
		out.ActiveFeatures = []string{}
	}
	b, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return b, nil
}

func rawOf(v gjson.Result) json.RawMessage {
	if !v.Exists() {
		return nil
	}
	return json.RawMessage(v.Raw)
}

func stringsOf(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	arr := v.Array()
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, e.String())
	}
	return out
}

// Sensors 激活的传感器标签
func (c *Config) Sensors() TagSet { return NewTagSet(c.ActiveSensors...) }

// Features 激活的特性标签
func (c *Config) Features() TagSet { return NewTagSet(c.ActiveFeatures...) }

// Idle 既无特性也无传感器
func (c *Config) Idle() bool { return len(c.ActiveSensors) == 0 && len(c.ActiveFeatures) == 0 }

// IsValid 负载为 JSON 对象且 lastSeen 字段为真值（非 null/false/空串/0）
func IsValid(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return false
	}
	v := root.Get(KeyLastSeen)
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

// FieldString 字段的字符串形式：字符串取其值，数字取原文，
// 数组/对象取紧凑 JSON，不存在或 null 为空串。
func FieldString(payload []byte, key string) string {
	v := gjson.GetBytes(payload, key)
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	case gjson.JSON:
		return string(pretty.Ugly([]byte(v.Raw)))
	default:
		return v.Raw
	}
}

// ID 负载中的节点标识
func ID(payload []byte) string {
	return gjson.GetBytes(payload, KeyID).String()
}

// Change 单个跟踪字段的变化
type Change struct {
	Field string
	Old   string
	New   string
}

// Diff 比较五个跟踪字段，返回所有发生变化的字段
func Diff(old, new []byte) []Change {
	var out []Change
	for _, f := range TrackedFields {
		o, n := FieldString(old, f), FieldString(new, f)
		if o != n {
			out = append(out, Change{Field: f, Old: o, New: n})
		}
	}
	return out
}

// Changed 任一跟踪字段不同即视为变化
func Changed(old, new []byte) bool {
	return len(Diff(old, new)) > 0
}
