package models

import (
	"time"
)

// 注意：
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt
// - 列表类字段以 JSON 文本保存，保持与下发格式一致

// Node 映射 nodes 表
type Node struct {
	// 主键，同时作为下发给节点的 dataId
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 节点 36 字符标识
	NodeID          string `gorm:"column:node_id;type:varchar(36);not null;uniqueIndex"`
	NumberOfSamples int32  `gorm:"column:number_of_samples;not null;default:1"`
	SleepTimeMillis int64  `gorm:"column:sleep_time_millis;not null;default:0"`
	IPv4Address     string `gorm:"column:ipv4_address;type:varchar(15);not null;default:''"`
	// JSON 数组文本
	ActiveSensors  string `gorm:"column:active_sensors;type:text;not null;default:'[]'"`
	ActiveFeatures string `gorm:"column:active_features;type:text;not null;default:'[]'"`
	// 最近一次上传的测量值（JSON 对象文本），可空
	LastValues *string `gorm:"column:last_values;type:text"`
	// 最近一次拉取/上传
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Node) TableName() string { return "nodes" }

// All 需要自动迁移的模型
func All() []interface{} {
	return []interface{}{&Node{}}
}
