package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/warthog618/go-gpiocdev"
)

// echoEdge is a single edge seen on an echo line.
type echoEdge struct {
	channel Channel
	rising  bool
	ts      time.Duration // kernel timestamp
}

// GPIO drives a pair of HC-SR04 style sensors wired to GPIO character device lines.
type GPIO struct {
	cfg *config.Config
	log *debuglog.Logger

	samples   chan RawSample
	edges     chan echoEdge
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	triggerLines [2]*gpiocdev.Line
	echoLines    [2]*gpiocdev.Line
	trigger      *Trigger
}

// NewGPIO creates a GPIO device using cfg.GPIO line offsets and cfg.Sensor timing.
func NewGPIO(cfg *config.Config, log *debuglog.Logger) *GPIO {
	ctx, cancel := context.WithCancel(context.Background())

	return &GPIO{
		cfg:     cfg,
		log:     log,
		samples: make(chan RawSample, DefaultBufferSize),
		edges:   make(chan echoEdge, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect requests the GPIO lines and starts the ranging loop.
func (g *GPIO) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connected {
		return ErrAlreadyConnected
	}

	offsets := [2][2]int{
		{g.cfg.GPIO.LeftTrigger, g.cfg.GPIO.LeftEcho},
		{g.cfg.GPIO.RightTrigger, g.cfg.GPIO.RightEcho},
	}

	for i, o := range offsets {
		ch := Channel(i)

		trig, err := gpiocdev.RequestLine(g.cfg.GPIO.Chip, o[0], gpiocdev.AsOutput(0))
		if err != nil {
			g.releaseLines()
			return fmt.Errorf("failed to request %s trigger line %d: %w", ch, o[0], err)
		}
		g.triggerLines[i] = trig

		echo, err := gpiocdev.RequestLine(g.cfg.GPIO.Chip, o[1],
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(g.edgeHandler(ch)))
		if err != nil {
			g.releaseLines()
			return fmt.Errorf("failed to request %s echo line %d: %w", ch, o[1], err)
		}
		g.echoLines[i] = echo

	}
	g.trigger = NewTrigger(g.cfg.Sensor.TriggerInterval, g.cfg.Sensor.TriggerPause, nil)

	g.connected = true
	g.done = make(chan struct{})
	g.log.System("gpio sensors ready on %s", g.cfg.GPIO.Chip)

	go g.rangeLoop()

	return nil
}

// Close stops ranging, releases the lines and closes the samples channel.
func (g *GPIO) Close() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}
	g.cancel()
	g.connected = false
	done := g.done
	g.mu.Unlock()

	<-done
	g.releaseLines()
	close(g.samples)
	g.log.System("gpio sensors released")

	return nil
}

// Samples returns the channel for reading samples.
func (g *GPIO) Samples() <-chan RawSample {
	return g.samples
}

// IsConnected returns whether the device is currently connected.
func (g *GPIO) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *GPIO) releaseLines() {
	for i := range g.triggerLines {
		if g.triggerLines[i] != nil {
			g.triggerLines[i].Close()
			g.triggerLines[i] = nil
		}
		if g.echoLines[i] != nil {
			g.echoLines[i].Close()
			g.echoLines[i] = nil
		}
	}
}

func (g *GPIO) edgeHandler(ch Channel) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		edge := echoEdge{
			channel: ch,
			rising:  evt.Type == gpiocdev.LineEventRisingEdge,
			ts:      evt.Timestamp,
		}
		select {
		case g.edges <- edge:
		default:
		}
	}
}

// rangeLoop alternates between the two sensors until the device is closed.
func (g *GPIO) rangeLoop() {
	defer close(g.done)

	// Longest echo we wait for before giving up on a reading.
	timeout := time.Duration(g.cfg.Sensor.MaxUltraRange)*time.Microsecond + 10*time.Millisecond

	for {
		for _, ch := range []Channel{Left, Right} {
			if g.ctx.Err() != nil {
				return
			}

			g.drainEdges()
			if _, err := g.trigger.Fire(g.triggerLines[ch]); err != nil {
				g.log.System("%s trigger failed: %v", ch, err)
				continue
			}

			echo, ok := g.awaitEcho(ch, timeout)
			if !ok {
				g.log.Variable("%s echo timed out", ch)
				continue
			}

			sample := RawSample{Timestamp: time.Now(), Channel: ch, Echo: echo}
			select {
			case g.samples <- sample:
			case <-g.ctx.Done():
				return
			default:
				g.log.System("samples channel full, dropping sample")
			}
		}
	}
}

func (g *GPIO) drainEdges() {
	for {
		select {
		case <-g.edges:
		default:
			return
		}
	}
}

// awaitEcho measures the next echo pulse width on ch in microseconds.
func (g *GPIO) awaitEcho(ch Channel, timeout time.Duration) (uint32, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var rise time.Duration
	var risen bool
	for {
		select {
		case <-g.ctx.Done():
			return 0, false
		case <-deadline.C:
			return 0, false
		case e := <-g.edges:
			if e.channel != ch {
				continue
			}
			if e.rising {
				rise, risen = e.ts, true
				continue
			}
			if risen {
				return uint32((e.ts - rise).Microseconds()), true
			}
		}
	}
}
