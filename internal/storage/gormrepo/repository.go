package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taoyao-code/iot-node/internal/registry"
	"github.com/taoyao-code/iot-node/internal/storage/models"
)

// Registry 基于 GORM 的节点注册表
type Registry struct {
	db *gorm.DB
}

var _ registry.Registry = (*Registry)(nil)

// New 返回使用给定 *gorm.DB 的注册表
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Migrate 创建/更新 nodes 表
func (r *Registry) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(models.All()...)
}

// Register 插入节点；node_id 冲突时不修改已有记录
func (r *Registry) Register(ctx context.Context, id string, tmpl registry.Template, at time.Time) (*registry.Node, bool, error) {
	row, err := toRow(id, tmpl)
	if err != nil {
		return nil, false, err
	}
	row.LastSeenAt = &at

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "node_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	n, err := r.Get(ctx, id)
	return n, res.RowsAffected > 0, err
}

func (r *Registry) Get(ctx context.Context, id string) (*registry.Node, error) {
	var row models.Node
	err := r.db.WithContext(ctx).Where("node_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (r *Registry) Touch(ctx context.Context, id string, at time.Time) (*registry.Node, error) {
	return r.update(ctx, id, map[string]interface{}{"last_seen_at": at})
}

func (r *Registry) RecordValues(ctx context.Context, id string, values map[string]string, at time.Time) (*registry.Node, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	return r.update(ctx, id, map[string]interface{}{
		"last_values":  string(b),
		"last_seen_at": at,
	})
}

func (r *Registry) UpdateTemplate(ctx context.Context, id string, tmpl registry.Template, at time.Time) (*registry.Node, error) {
	row, err := toRow(id, tmpl)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, id, map[string]interface{}{
		"number_of_samples": row.NumberOfSamples,
		"sleep_time_millis": row.SleepTimeMillis,
		"ipv4_address":      row.IPv4Address,
		"active_sensors":    row.ActiveSensors,
		"active_features":   row.ActiveFeatures,
		"updated_at":        at,
	})
}

func (r *Registry) List(ctx context.Context) ([]*registry.Node, error) {
	var rows []models.Node
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*registry.Node, 0, len(rows))
	for i := range rows {
		n, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Node{}).Count(&n).Error
	return n, err
}

func (r *Registry) update(ctx context.Context, id string, cols map[string]interface{}) (*registry.Node, error) {
	res := r.db.WithContext(ctx).Model(&models.Node{}).Where("node_id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, registry.ErrNotFound
	}
	return r.Get(ctx, id)
}

func toRow(id string, tmpl registry.Template) (*models.Node, error) {
	tmpl = tmpl.Normalize()
	sensors, err := json.Marshal(tmpl.ActiveSensors)
	if err != nil {
		return nil, fmt.Errorf("encode sensors: %w", err)
	}
	features, err := json.Marshal(tmpl.ActiveFeatures)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return &models.Node{
		NodeID:          id,
		NumberOfSamples: int32(tmpl.NumberOfSamples),
		SleepTimeMillis: int64(tmpl.SleepTimeMillis),
		IPv4Address:     tmpl.IPv4Address,
		ActiveSensors:   string(sensors),
		ActiveFeatures:  string(features),
	}, nil
}

func fromRow(row *models.Node) (*registry.Node, error) {
	n := &registry.Node{
		ID:     row.NodeID,
		DataID: row.ID,
		Template: registry.Template{
			NumberOfSamples: int(row.NumberOfSamples),
			SleepTimeMillis: uint32(row.SleepTimeMillis),
			IPv4Address:     row.IPv4Address,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.ActiveSensors), &n.Template.ActiveSensors); err != nil {
		return nil, fmt.Errorf("node %s sensors: %w", row.NodeID, err)
	}
	if err := json.Unmarshal([]byte(row.ActiveFeatures), &n.Template.ActiveFeatures); err != nil {
		return nil, fmt.Errorf("node %s features: %w", row.NodeID, err)
	}
	if row.LastValues != nil {
		if err := json.Unmarshal([]byte(*row.LastValues), &n.LastValues); err != nil {
			return nil, fmt.Errorf("node %s values: %w", row.NodeID, err)
		}
	}
	if row.LastSeenAt != nil {
		n.LastSeen = *row.LastSeenAt
	}
	return n, nil
}
