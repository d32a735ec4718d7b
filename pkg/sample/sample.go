package sample

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/sensor"
)

// Status is the classification of a single reading.
type Status int

const (
	Invalid   Status = iota // Not usable: no echo, beyond sensor range or clock drift
	InRange                 // Within the presence band
	OutOfBand               // Valid reading outside the presence band
)

func (s Status) String() string {
	switch s {
	case InRange:
		return "in-range"
	case OutOfBand:
		return "out-of-band"
	default:
		return "invalid"
	}
}

// Sample is a classified ranging result.
type Sample struct {
	Timestamp time.Time
	Channel   sensor.Channel
	Echo      uint32  // Echo pulse width (µs)
	Inches    float32 // Distance to the target
	Status    Status
}

// Converter is a function type that converts RawSample channel to Sample channel.
type Converter func(in <-chan sensor.RawSample) <-chan Sample

// NewConverter creates a converter function that classifies every RawSample.
func NewConverter(cfg *config.Config, bufSize int, log *debuglog.Logger) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan sensor.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for raw := range in {
				s := Classify(&cfg.Sensor, raw, time.Now())
				log.Variable("%s echo=%d inches=%.1f %s", s.Channel, s.Echo, s.Inches, s.Status)

				select {
				case out <- s:
				case <-time.After(time.Second):
					log.System("converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// Classify converts raw to inches and classifies it against the presence band.
// received is the host time the reading arrived, used for the drift check.
func Classify(cfg *config.SensorConfig, raw sensor.RawSample, received time.Time) Sample {
	s := Sample{
		Timestamp: raw.Timestamp,
		Channel:   raw.Channel,
		Echo:      raw.Echo,
		Inches:    EchoToInches(raw.Echo),
	}

	switch {
	case raw.Echo == 0, int64(raw.Echo) > int64(cfg.MaxUltraRange):
		s.Status = Invalid
	case drift(raw.Timestamp, received) > cfg.MaxTimestampDiff:
		s.Status = Invalid
	case s.Inches >= float32(cfg.MinInches) && s.Inches <= float32(cfg.MaxInches):
		s.Status = InRange
	default:
		s.Status = OutOfBand
	}

	return s
}

// EchoToInches converts an echo width in microseconds to inches, rounded to a tenth.
func EchoToInches(echo uint32) float32 {
	return math32.Round(float32(echo)/sensor.MicrosPerInch*10) / 10
}

// InchesToEcho converts a distance to the echo width the sensor would report.
func InchesToEcho(inches float32) uint32 {
	return uint32(math32.Round(inches * sensor.MicrosPerInch))
}

func drift(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
