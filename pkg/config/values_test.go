package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_MatchFirmwareConstants(t *testing.T) {
	cfg := Default()

	want := map[string]any{
		"TZONE":               -5,
		"SERIALTXRATE":        9600,
		"MININCHES":           2,
		"MAXINCHES":           20,
		"SAMPLECOUNT":         1,
		"MAXTIMEBTNSAMPLES":   int64(300000),
		"MAXTSDIFF":           int64(10000000),
		"MAXULTRARANGE":       10000,
		"CLOUDUPDATEINTERVAL": int64(90000000),
		"TRIGGERINTERVAL":     int64(100),
		"TRIGGERPAUSE":        int64(10),
		"WEBHOOKID1":          "xing1",
		"WEBHOOKID2":          "xing2",
		"DBGLVL0":             1,
		"DBGLVL1":             1,
		"DBGLVL2":             1,
		"DBGLVL3":             1,
	}

	values := cfg.Values()
	assert.Len(t, values, len(want))
	for _, v := range values {
		expected, ok := want[v.Name]
		require.True(t, ok, "unexpected value %s", v.Name)
		assert.Equal(t, expected, v.Value, v.Name)
	}
}

func TestValues_UniqueNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, v := range Default().Values() {
		assert.False(t, seen[v.Name], "duplicate name %s", v.Name)
		seen[v.Name] = true
	}
}

func TestValues_DebugFlagsAreBinary(t *testing.T) {
	cfg := Default()
	cfg.Debug.State = false

	for _, name := range []string{"DBGLVL0", "DBGLVL1", "DBGLVL2", "DBGLVL3"} {
		v, ok := cfg.Lookup(name)
		require.True(t, ok)
		assert.Contains(t, []any{0, 1}, v.Value)
	}
	v, _ := cfg.Lookup("DBGLVL2")
	assert.Equal(t, 0, v.Value)
}

func TestValues_TriggerUnitsStayDistinct(t *testing.T) {
	cfg := Default()

	interval, ok := cfg.Lookup("TRIGGERINTERVAL")
	require.True(t, ok)
	pause, ok := cfg.Lookup("TRIGGERPAUSE")
	require.True(t, ok)

	assert.Equal(t, "ms", interval.Unit)
	assert.Equal(t, "us", pause.Unit)
	// 100 ms is 10000 times longer than 10 µs, even though the raw numbers differ only tenfold.
	assert.Equal(t, int64(10000), int64(cfg.Sensor.TriggerInterval/cfg.Sensor.TriggerPause))
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Default().Lookup("NOPE")
	assert.False(t, ok)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "MININCHES=2 in", Value{Name: "MININCHES", Value: 2, Unit: "in"}.String())
	assert.Equal(t, "WEBHOOKID1=xing1", Value{Name: "WEBHOOKID1", Value: "xing1"}.String())
}
