package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nvstore"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, cfgpkg.StoreConfig{Backend: "memory", Capacity: 256}, nil)
	require.NoError(t, err)
	assert.Equal(t, 256, s.Capacity())

	path := filepath.Join(t.TempDir(), "eeprom.bin")
	s, err = OpenStore(ctx, cfgpkg.StoreConfig{Backend: "file", Path: path, Capacity: 128}, nil)
	require.NoError(t, err)
	assert.IsType(t, &nvstore.FileStore{}, s)

	_, err = OpenStore(ctx, cfgpkg.StoreConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
	_, err = OpenStore(ctx, cfgpkg.StoreConfig{Backend: "flash"}, nil)
	assert.Error(t, err)
}

func TestBuildNode(t *testing.T) {
	t.Setenv("IOT_CONFIG", "")
	cfg, err := cfgpkg.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = "memory"

	nv, err := OpenStore(context.Background(), cfg.Store, nil)
	require.NoError(t, err)
	node, err := BuildNode(nv, cfg, metrics.NewNodeMetrics(nil), zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, node.Cycle)
	assert.False(t, node.Identity.HasIdentity())
	id, created, err := node.Identity.Bootstrap()
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, [16]byte{}, [16]byte(id))

	cfg.Store.WriteOrder = "sideways"
	_, err = BuildNode(nv, cfg, metrics.NewNodeMetrics(nil), zap.NewNop())
	assert.Error(t, err)
}
