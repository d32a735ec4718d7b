package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/config"
)

// Mock simulates a two-sensor crossing gate for testing and development.
//
// Every CrossingPeriod a walker passes the gate. The walker is seen first by
// one sensor for DwellTime and, half a dwell later, by the other one.
type Mock struct {
	cfg  *config.MockConfig
	seed uint64

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	startTime time.Time
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:     cfg,
		seed:    uint64(time.Now().UnixNano()),
		samples: make(chan RawSample, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	m.connected = true
	m.startTime = time.Now()
	m.done = make(chan struct{})

	go m.generateSamples()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	<-done
	close(m.samples)

	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateSamples emits one sample per channel on every tick.
func (m *Mock) generateSamples() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			for _, ch := range []Channel{Left, Right} {
				select {
				case m.samples <- m.generateSample(now, ch):
				case <-m.ctx.Done():
					return
				default:
					// Channel full, skip
				}
			}
		}
	}
}

// generateSample computes the reading of channel ch at time now.
func (m *Mock) generateSample(now time.Time, ch Channel) RawSample {
	elapsed := now.Sub(m.startTime)
	walker := int64(elapsed / m.cfg.CrossingPeriod)
	phase := elapsed - time.Duration(walker)*m.cfg.CrossingPeriod

	inches := m.cfg.IdleInches
	if m.present(phase, ch == m.firstChannel(walker)) {
		inches = m.cfg.PassingInches
	}

	noise := math.Sin(float64(elapsed.Milliseconds())*0.37+float64(ch)) * m.cfg.NoiseInches
	inches = math.Max(inches+noise, 0)

	return RawSample{
		Timestamp: now,
		Channel:   ch,
		Echo:      uint32(inches * MicrosPerInch),
	}
}

// present reports whether the walker is in front of a sensor at phase.
func (m *Mock) present(phase time.Duration, first bool) bool {
	lead := m.cfg.CrossingPeriod / 4
	dwell := m.cfg.DwellTime
	if !first {
		lead += dwell / 2
	}
	return phase >= lead && phase < lead+dwell
}

// firstChannel returns the side walker enters from.
func (m *Mock) firstChannel(walker int64) Channel {
	rng := rand.New(rand.NewPCG(uint64(walker), m.seed))
	if rng.IntN(100) < m.cfg.RightToLeftPct {
		return Right
	}
	return Left
}
