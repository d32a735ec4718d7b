// Package crossing turns classified samples from a two-sensor gate into
// directional crossing events.
//
// Each sensor channel is debounced independently: its confirmed presence
// only flips after SampleCount consecutive samples agree on the new state.
// The first channel to become occupied opens a crossing; the crossing is
// complete once both channels have been occupied and both are clear again.
package crossing

import (
	"fmt"
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/sample"
	"github.com/itohio/goxing/pkg/sensor"
)

var _ CrossingDetector = (*Detector)(nil)

// Direction is the side a crossing started from.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction%d", int(d))
	}
}

// Event is a completed crossing.
type Event struct {
	Direction Direction
	Start     time.Time // First channel confirmed occupied
	End       time.Time // Both channels confirmed clear
}

// Duration returns how long the crossing took.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Counts holds the number of completed crossings per direction.
type Counts struct {
	Left  int
	Right int
}

// Total returns the number of crossings in both directions.
func (c Counts) Total() int {
	return c.Left + c.Right
}

// Add increments the counter for direction d.
func (c *Counts) Add(d Direction) {
	switch d {
	case Left:
		c.Left++
	case Right:
		c.Right++
	}
}

// CrossingDetector processes samples and reports crossings.
type CrossingDetector interface {
	ProcessSamples(input <-chan sample.Sample)
	Events() []Event                                  // Completed crossings, oldest first
	Counts() Counts                                   // Crossings since start
	Occupied() [2]bool                                // Confirmed presence per channel
	OnEvent(func(Event))                              // Register callback for completed crossings
	OnUpdate(func(s sample.Sample, occupied [2]bool)) // Register callback for every processed sample
}

// channelState is the debounce state of one sensor channel.
type channelState struct {
	occupied bool      // Confirmed presence
	run      int       // Consecutive samples disagreeing with occupied
	last     time.Time // Timestamp of the previous sample
	seen     bool
}

// Detector implements CrossingDetector.
type Detector struct {
	log *debuglog.Logger

	sampleCount int
	maxGap      time.Duration
	timeout     time.Duration
	history     int

	mu       sync.RWMutex
	channels [2]channelState
	active   bool
	first    sensor.Channel
	visited  [2]bool
	start    time.Time
	events   []Event
	counts   Counts
	shutdown bool

	cbMu            sync.RWMutex
	eventCallbacks  []func(Event)
	updateCallbacks []func(sample.Sample, [2]bool)
}

// New creates a detector using cfg.Sensor and cfg.Measurement.
func New(cfg *config.Config, log *debuglog.Logger) *Detector {
	sampleCount := cfg.Sensor.SampleCount
	if sampleCount < 1 {
		sampleCount = 1
	}

	return &Detector{
		log:         log,
		sampleCount: sampleCount,
		maxGap:      cfg.Sensor.MaxTimeBetweenSamples,
		timeout:     cfg.Measurement.CrossingTimeout,
		history:     cfg.Measurement.History,
		events:      make([]Event, 0),
	}
}

// ProcessSamples consumes samples until input is closed.
// After that no further callbacks are invoked.
func (d *Detector) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		d.Process(s)
	}
	d.mu.Lock()
	d.shutdown = true
	d.mu.Unlock()
	d.log.System("detector input closed")
}

// Process feeds a single sample and returns the crossing it completed, if any.
func (d *Detector) Process(s sample.Sample) (Event, bool) {
	if s.Channel != sensor.Left && s.Channel != sensor.Right {
		d.log.System("ignoring sample from unknown %s", s.Channel)
		return Event{}, false
	}

	d.mu.Lock()
	ev, completed := d.update(s)
	occupied := [2]bool{d.channels[0].occupied, d.channels[1].occupied}
	notify := !d.shutdown
	d.mu.Unlock()

	if notify {
		d.notify(s, occupied, ev, completed)
	}

	return ev, completed
}

// update applies s to the state machine. Must hold d.mu.
func (d *Detector) update(s sample.Sample) (Event, bool) {
	ch := &d.channels[s.Channel]

	if ch.seen && s.Timestamp.Sub(ch.last) > d.maxGap {
		d.log.State("%s stale after %s gap", s.Channel, s.Timestamp.Sub(ch.last))
		ch.run = 0
		d.abandon("stale samples")
	}
	ch.last = s.Timestamp
	ch.seen = true

	if d.active && d.timeout > 0 && s.Timestamp.Sub(d.start) > d.timeout {
		d.abandon("timeout")
	}

	if s.Status == sample.Invalid {
		d.log.Variable("%s invalid reading echo=%d", s.Channel, s.Echo)
		return Event{}, false
	}

	present := s.Status == sample.InRange
	if present == ch.occupied {
		ch.run = 0
		return Event{}, false
	}

	ch.run++
	d.log.Variable("%s run=%d/%d towards present=%v", s.Channel, ch.run, d.sampleCount, present)
	if ch.run < d.sampleCount {
		return Event{}, false
	}

	ch.occupied = present
	ch.run = 0
	d.log.State("%s occupied=%v at %.1fin", s.Channel, present, s.Inches)

	if present {
		d.enter(s.Channel, s.Timestamp)
		return Event{}, false
	}
	return d.leave(s.Timestamp)
}

// enter handles a channel becoming occupied. Must hold d.mu.
func (d *Detector) enter(ch sensor.Channel, ts time.Time) {
	if !d.active {
		d.active = true
		d.first = ch
		d.visited = [2]bool{}
		d.start = ts
		d.log.State("crossing opened on %s", ch)
	} else if ch == d.first && !d.visited[ch.Other()] {
		// Walker stepped back out and in again on the same side.
		d.start = ts
		d.log.State("crossing restarted on %s", ch)
	}
	d.visited[ch] = true
}

// leave handles a channel becoming clear. Must hold d.mu.
func (d *Detector) leave(ts time.Time) (Event, bool) {
	if !d.active || !d.visited[sensor.Left] || !d.visited[sensor.Right] {
		return Event{}, false
	}
	if d.channels[sensor.Left].occupied || d.channels[sensor.Right].occupied {
		return Event{}, false
	}

	ev := Event{
		Direction: Direction(d.first),
		Start:     d.start,
		End:       ts,
	}
	d.active = false
	d.visited = [2]bool{}

	d.counts.Add(ev.Direction)
	d.events = append(d.events, ev)
	if d.history > 0 && len(d.events) > d.history {
		d.events = d.events[len(d.events)-d.history:]
	}
	d.log.Human("crossing %s in %s", ev.Direction, ev.Duration())

	return ev, true
}

// abandon drops the crossing in progress. Must hold d.mu.
func (d *Detector) abandon(reason string) {
	if !d.active {
		return
	}
	d.log.State("crossing from %s abandoned: %s", d.first, reason)
	d.active = false
	d.visited = [2]bool{}
}

// Events returns a copy of the completed crossings, oldest first.
func (d *Detector) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]Event, len(d.events))
	copy(result, d.events)
	return result
}

// Counts returns the crossings counted so far.
func (d *Detector) Counts() Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counts
}

// Occupied returns the confirmed presence of both channels.
func (d *Detector) Occupied() [2]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return [2]bool{d.channels[0].occupied, d.channels[1].occupied}
}

// OnEvent registers a callback invoked for every completed crossing.
// Callbacks run on the processing goroutine and should return quickly.
func (d *Detector) OnEvent(callback func(Event)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.eventCallbacks = append(d.eventCallbacks, callback)
}

// OnUpdate registers a callback invoked for every processed sample.
func (d *Detector) OnUpdate(callback func(s sample.Sample, occupied [2]bool)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.updateCallbacks = append(d.updateCallbacks, callback)
}

// ResetShutdown allows callbacks again without touching detector state.
func (d *Detector) ResetShutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = false
}

// Reset forgets confirmed occupancy, pending debounce runs and any crossing
// in progress, and allows callbacks again. Counts and completed events are
// kept. Call it before feeding samples from a new connection.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = [2]channelState{}
	d.active = false
	d.visited = [2]bool{}
	d.start = time.Time{}
	d.shutdown = false
}

// notify invokes callbacks without holding any locks.
func (d *Detector) notify(s sample.Sample, occupied [2]bool, ev Event, completed bool) {
	d.cbMu.RLock()
	updates := make([]func(sample.Sample, [2]bool), len(d.updateCallbacks))
	copy(updates, d.updateCallbacks)
	events := make([]func(Event), len(d.eventCallbacks))
	copy(events, d.eventCallbacks)
	d.cbMu.RUnlock()

	for _, cb := range updates {
		if cb != nil {
			cb(s, occupied)
		}
	}
	if !completed {
		return
	}
	for _, cb := range events {
		if cb != nil {
			cb(ev)
		}
	}
}
