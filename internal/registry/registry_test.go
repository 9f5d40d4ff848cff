package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/iot-node/internal/nodeconfig"
)

const nodeA = "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"

var t0 = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func TestMemoryRegistry_RegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	n, created, err := reg.Register(ctx, nodeA, Template{SleepTimeMillis: 60000}, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), n.DataID)
	assert.Equal(t, []string{}, n.Template.ActiveSensors)

	again, created, err := reg.Register(ctx, nodeA, Template{SleepTimeMillis: 1}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint32(60000), again.Template.SleepTimeMillis)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryRegistry_UnknownNode(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	_, err := reg.Get(ctx, nodeA)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.RecordValues(ctx, nodeA, map[string]string{"BME280_TEMP": "1.00"}, t0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.UpdateTemplate(ctx, nodeA, Template{}, t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_ValuesAndTemplate(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	_, _, err := reg.Register(ctx, nodeA, Template{}, t0)
	require.NoError(t, err)

	values := map[string]string{"BME280_TEMP": "21.50"}
	n, err := reg.RecordValues(ctx, nodeA, values, t0.Add(time.Minute))
	require.NoError(t, err)
	values["BME280_TEMP"] = "mutated"
	assert.Equal(t, "21.50", n.LastValues["BME280_TEMP"])
	assert.Equal(t, t0.Add(time.Minute), n.LastSeen)

	sensors := []string{"BME280_HYGRO"}
	n, err = reg.UpdateTemplate(ctx, nodeA, Template{ActiveSensors: sensors, SleepTimeMillis: 30000}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	sensors[0] = "mutated"
	got, err := reg.Get(ctx, nodeA)
	require.NoError(t, err)
	assert.Equal(t, []string{"BME280_HYGRO"}, got.Template.ActiveSensors)
	assert.Equal(t, n.UpdatedAt, got.UpdatedAt)
}

func TestNode_ConfigJSON(t *testing.T) {
	n := &Node{
		ID:       nodeA,
		DataID:   7,
		Template: Template{NumberOfSamples: 3, SleepTimeMillis: 60000, IPv4Address: "10.0.0.9", ActiveSensors: []string{"BME280_TEMP"}},
		LastSeen: t0,
	}
	b, err := n.ConfigJSON()
	require.NoError(t, err)

	assert.True(t, nodeconfig.IsValid(b))
	assert.Equal(t, nodeA, nodeconfig.ID(b))
	assert.Equal(t, "10.0.0.9", nodeconfig.FieldString(b, nodeconfig.KeyIPv4Address))
	assert.Equal(t, `["BME280_TEMP"]`, nodeconfig.FieldString(b, nodeconfig.KeyActiveSensors))
	assert.Equal(t, `[]`, nodeconfig.FieldString(b, nodeconfig.KeyActiveFeatures))

	c, err := nodeconfig.Parse(b)
	require.NoError(t, err)
	assert.JSONEq(t, `7`, string(c.DataID))

	// 只有 lastSeen 变化时节点不应重写存储
	n.LastSeen = t0.Add(time.Hour)
	b2, err := n.ConfigJSON()
	require.NoError(t, err)
	assert.False(t, nodeconfig.Changed(b, b2))
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodes:
  - id: `+nodeA+`
    sleepTimeMillis: 15000
    activeSensors: [BME280_TEMP, BME280_DEW]
    activeFeatures: [I2C_DEVICE_ON_IO13]
`), 0o644))

	f, err := LoadSeed(path)
	require.NoError(t, err)
	reg := NewMemoryRegistry()
	ctx := context.Background()
	_, _, err = reg.Register(ctx, nodeA, Template{}, t0)
	require.NoError(t, err)

	n, err := f.Apply(ctx, reg, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := reg.Get(ctx, nodeA)
	require.NoError(t, err)
	assert.Equal(t, uint32(15000), got.Template.SleepTimeMillis)
	assert.Equal(t, []string{"BME280_TEMP", "BME280_DEW"}, got.Template.ActiveSensors)
	assert.Equal(t, []string{"I2C_DEVICE_ON_IO13"}, got.Template.ActiveFeatures)
}

func TestLoadSeed_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - sleepTimeMillis: 1\n"), 0o644))
	_, err := LoadSeed(path)
	assert.Error(t, err)
}
