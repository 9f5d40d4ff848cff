package nodeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"id":"abc","lastSeen":"1","numberOfSamples":1,"sleepTimeMillis":60000,"ipv4address":"","activeSensors":["BME280_TEMP","X_NEW"],"activeFeatures":[],"dataId":7}`

func TestIsValid(t *testing.T) {
	cases := map[string]bool{
		sample:                        true,
		`{"lastSeen":1700000000}`:     true,
		`{"lastSeen":{"t":1}}`:        true,
		`{"lastSeen":true}`:           true,
		`{}`:                          false,
		`{"lastSeen":""}`:             false,
		`{"lastSeen":null}`:           false,
		`{"lastSeen":false}`:          false,
		`{"lastSeen":0}`:              false,
		`["lastSeen"]`:                false,
		`{"note":"lastSeen"}`:         false,
		`{"lastSeen":"1"`:             false,
		``:                            false,
		`<html>lastSeen</html>`:       false,
	}
	for payload, want := range cases {
		assert.Equal(t, want, IsValid([]byte(payload)), payload)
	}
}

func TestFieldString(t *testing.T) {
	p := []byte(sample)
	assert.Equal(t, "1", FieldString(p, KeyNumberOfSamples))
	assert.Equal(t, "60000", FieldString(p, KeySleepTimeMillis))
	assert.Equal(t, "", FieldString(p, KeyIPv4Address))
	assert.Equal(t, `["BME280_TEMP","X_NEW"]`, FieldString(p, KeyActiveSensors))
	assert.Equal(t, `[]`, FieldString(p, KeyActiveFeatures))
	assert.Equal(t, "", FieldString([]byte(`{}`), KeyActiveFeatures))
	assert.Equal(t, "", FieldString([]byte(`{"ipv4address":null}`), KeyIPv4Address))
}

func TestDiffIgnoresWhitespaceAndUntrackedFields(t *testing.T) {
	old := []byte(`{"id":"a","lastSeen":"1","numberOfSamples":2,"activeSensors":["A", "B"]}`)
	next := []byte(`{"id":"b","lastSeen":"2","dataId":9,"numberOfSamples":2,"activeSensors":[ "A","B" ]}`)
	assert.Empty(t, Diff(old, next))
	assert.False(t, Changed(old, next))
}

func TestDiffDetectsEachTrackedField(t *testing.T) {
	base := `{"numberOfSamples":1,"sleepTimeMillis":1000,"ipv4address":"10.0.0.1","activeSensors":["A"],"activeFeatures":["F"]}`
	variants := map[string]string{
		KeyNumberOfSamples: `{"numberOfSamples":2,"sleepTimeMillis":1000,"ipv4address":"10.0.0.1","activeSensors":["A"],"activeFeatures":["F"]}`,
		KeySleepTimeMillis: `{"numberOfSamples":1,"sleepTimeMillis":2000,"ipv4address":"10.0.0.1","activeSensors":["A"],"activeFeatures":["F"]}`,
		KeyIPv4Address:     `{"numberOfSamples":1,"sleepTimeMillis":1000,"ipv4address":167772162,"activeSensors":["A"],"activeFeatures":["F"]}`,
		KeyActiveSensors:   `{"numberOfSamples":1,"sleepTimeMillis":1000,"ipv4address":"10.0.0.1","activeSensors":["A","B"],"activeFeatures":["F"]}`,
		KeyActiveFeatures:  `{"numberOfSamples":1,"sleepTimeMillis":1000,"ipv4address":"10.0.0.1","activeSensors":["A"],"activeFeatures":[]}`,
	}
	for field, v := range variants {
		changes := Diff([]byte(base), []byte(v))
		require.Len(t, changes, 1, field)
		assert.Equal(t, field, changes[0].Field)
	}
}

func TestDiffAgainstEmptyBaseline(t *testing.T) {
	changes := Diff([]byte(`{}`), []byte(sample))
	assert.NotEmpty(t, changes)
	// ipv4address 为空串，与缺失等价
	for _, c := range changes {
		assert.NotEqual(t, KeyIPv4Address, c.Field)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "abc", c.ID)
	assert.Equal(t, 1, c.NumberOfSamples)
	assert.Equal(t, uint32(60000), c.SleepTimeMillis)
	assert.Equal(t, `7`, string(c.DataID))
	assert.True(t, c.Sensors().Has(TagBME280Temp))
	assert.Equal(t, []Tag{"X_NEW"}, c.Sensors().Unknown())
	assert.False(t, c.Idle())

	empty, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, empty.Idle())
	assert.Equal(t, "", empty.ID)

	lenient, err := Parse([]byte(`{"sleepTimeMillis":"30000","numberOfSamples":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, uint32(30000), lenient.SleepTimeMillis)
	assert.Equal(t, 3, lenient.NumberOfSamples)

	_, err = Parse([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = Parse([]byte(`{"id":`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := &Config{ID: "n1", NumberOfSamples: 1, SleepTimeMillis: 60000, LastSeen: []byte(`"1"`)}
	b, err := c.Marshal()
	require.NoError(t, err)
	assert.True(t, IsValid(b))
	assert.Equal(t, "[]", FieldString(b, KeyActiveSensors))
	assert.Equal(t, "n1", ID(b))
}

func TestTagSet(t *testing.T) {
	s := NewTagSet("I2C_DEVICE_ON_IO0", "BME280_DEW", "I2C_DEVICE_ON_IO0")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Tag{TagI2CDeviceOnIO0, TagBME280Dew}, s.Tags())
	assert.True(t, s.Any(TagBME280Temp, TagBME280Dew))
	assert.False(t, s.Any(TagBME280Temp, TagBME280Baro))
	assert.Equal(t, []string{"I2C_DEVICE_ON_IO0", "BME280_DEW"}, s.Strings())

	var zero TagSet
	assert.False(t, zero.Has(TagBME280Temp))
}

func TestValuesPayload(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	p := NewValuesPayload(c)
	p.Set(TagBME280Temp, "21.50")
	b, err := p.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataId":7,"values":{"BME280_TEMP":"21.50"}}`, string(b))

	b, err = NewValuesPayload(nil).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataId":null,"values":{}}`, string(b))
}
