package registry

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedNode 种子文件中的一个节点
type SeedNode struct {
	ID       string `yaml:"id"`
	Template `yaml:",inline"`
}

// SeedFile 种子文件结构
type SeedFile struct {
	Nodes []SeedNode `yaml:"nodes"`
}

// LoadSeed 读取 YAML 种子文件
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, n := range f.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("seed file %s: node %d has no id", path, i)
		}
	}
	return &f, nil
}

// Apply 注册种子节点并覆盖其配置，返回处理的节点数
func (f *SeedFile) Apply(ctx context.Context, reg Registry, at time.Time) (int, error) {
	for _, n := range f.Nodes {
		if _, _, err := reg.Register(ctx, n.ID, n.Template, at); err != nil {
			return 0, fmt.Errorf("seed %s: %w", n.ID, err)
		}
		if _, err := reg.UpdateTemplate(ctx, n.ID, n.Template, at); err != nil {
			return 0, fmt.Errorf("seed %s: %w", n.ID, err)
		}
	}
	return len(f.Nodes), nil
}
