package config

import (
	"fmt"
	"time"
)

// Value is a single named configuration entry expressed in its native unit.
type Value struct {
	Name  string
	Value any
	Unit  string
}

func (v Value) String() string {
	if v.Unit == "" {
		return fmt.Sprintf("%s=%v", v.Name, v.Value)
	}
	return fmt.Sprintf("%s=%v %s", v.Name, v.Value, v.Unit)
}

// Values returns the named configuration table. Durations are reported as
// integers in the unit the sensor firmware uses for them, so TRIGGERINTERVAL
// is in milliseconds while TRIGGERPAUSE is in microseconds.
func (c *Config) Values() []Value {
	return []Value{
		{Name: "TZONE", Value: c.Cloud.TimeZone, Unit: "h"},
		{Name: "SERIALTXRATE", Value: c.Debug.SerialTxRate, Unit: "bit/s"},
		{Name: "MININCHES", Value: c.Sensor.MinInches, Unit: "in"},
		{Name: "MAXINCHES", Value: c.Sensor.MaxInches, Unit: "in"},
		{Name: "SAMPLECOUNT", Value: c.Sensor.SampleCount, Unit: "samples"},
		{Name: "MAXTIMEBTNSAMPLES", Value: micros(c.Sensor.MaxTimeBetweenSamples), Unit: "us"},
		{Name: "MAXTSDIFF", Value: micros(c.Sensor.MaxTimestampDiff), Unit: "us"},
		{Name: "MAXULTRARANGE", Value: c.Sensor.MaxUltraRange, Unit: "native"},
		{Name: "CLOUDUPDATEINTERVAL", Value: micros(c.Cloud.UpdateInterval), Unit: "us"},
		{Name: "TRIGGERINTERVAL", Value: c.Sensor.TriggerInterval.Milliseconds(), Unit: "ms"},
		{Name: "TRIGGERPAUSE", Value: micros(c.Sensor.TriggerPause), Unit: "us"},
		{Name: "WEBHOOKID1", Value: c.Webhook.LeftID},
		{Name: "WEBHOOKID2", Value: c.Webhook.RightID},
		{Name: "DBGLVL0", Value: flag(c.Debug.Human)},
		{Name: "DBGLVL1", Value: flag(c.Debug.System)},
		{Name: "DBGLVL2", Value: flag(c.Debug.State)},
		{Name: "DBGLVL3", Value: flag(c.Debug.Variable)},
	}
}

// Lookup returns the named configuration entry.
func (c *Config) Lookup(name string) (Value, bool) {
	for _, v := range c.Values() {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}

func flag(on bool) int {
	if on {
		return 1
	}
	return 0
}
