package sample

import (
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/sensor"
)

// NewAveragingConverter creates a converter that replaces each valid echo by
// the mean of the last windowSize valid echoes of the same channel before
// classifying it. Invalid readings are classified as they are and never
// enter the window.
func NewAveragingConverter(cfg *config.Config, windowSize int, bufSize int, log *debuglog.Logger) Converter {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan sensor.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			windows := make(map[sensor.Channel][]uint32)

			for raw := range in {
				now := time.Now()
				s := Classify(&cfg.Sensor, raw, now)
				if s.Status != Invalid {
					buf := append(windows[raw.Channel], raw.Echo)
					if len(buf) > windowSize {
						buf = buf[1:] // Remove oldest
					}
					windows[raw.Channel] = buf

					avg := raw
					avg.Echo = averageEcho(buf)
					s = Classify(&cfg.Sensor, avg, now)
				}

				select {
				case out <- s:
				case <-time.After(time.Second):
					log.System("averaging converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// averageEcho returns the rounded mean of echoes.
func averageEcho(echoes []uint32) uint32 {
	if len(echoes) == 0 {
		return 0
	}

	var sum uint64
	for _, e := range echoes {
		sum += uint64(e)
	}

	n := uint64(len(echoes))
	return uint32((sum + n/2) / n) // Round to nearest
}
