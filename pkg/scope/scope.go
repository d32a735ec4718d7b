// Package scope provides a Fyne widget plotting the recent distance history of
// both sensors together with the presence band and detected crossings.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/sample"
	"github.com/itohio/goxing/pkg/sensor"
)

// DefaultWindow is the minimum time span shown.
const DefaultWindow = 10 * time.Second

// ScopeWidget is a custom Fyne widget that displays distance traces.
type ScopeWidget struct {
	widget.BaseWidget

	minInches float64
	maxInches float64
	window    time.Duration

	// Data (protected by mu)
	mu     sync.RWMutex
	traces [2][]sample.Sample
	events []crossing.Event

	// Display buffers (reused for downsampling)
	display [2][]sample.Sample

	// Auto-scaling
	yMax       float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		minInches:        float64(cfg.Sensor.MinInches),
		maxInches:        float64(cfg.Sensor.MaxInches),
		window:           DefaultWindow,
		display:          [2][]sample.Sample{make([]sample.Sample, 0, 500), make([]sample.Sample, 0, 500)},
		maxDisplayPoints: 500, // Per channel
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateData updates the widget with the samples of both channels and the
// crossings seen so far. Call it on the Fyne thread, e.g. via fyne.Do().
func (s *ScopeWidget) UpdateData(samples []sample.Sample, events []crossing.Event) {
	s.mu.Lock()

	s.traces[sensor.Left] = s.traces[sensor.Left][:0]
	s.traces[sensor.Right] = s.traces[sensor.Right][:0]
	for _, smp := range samples {
		if smp.Channel != sensor.Left && smp.Channel != sensor.Right {
			continue
		}
		if smp.Status == sample.Invalid {
			continue
		}
		s.traces[smp.Channel] = append(s.traces[smp.Channel], smp)
	}
	for ch := range s.traces {
		s.display[ch] = sample.Downsample(s.display[ch], s.traces[ch], s.maxDisplayPoints)
	}
	s.events = events

	s.updateAutoScale()

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// updateAutoScale calculates axis ranges from the current data.
func (s *ScopeWidget) updateAutoScale() {
	// Keep the presence band in the lower half of the plot.
	s.yMax = 2 * s.maxInches
	for _, trace := range s.display {
		for _, smp := range trace {
			if v := float64(smp.Inches); v > s.yMax {
				s.yMax = v
			}
		}
	}
	s.yMax *= 1.1

	first, last, ok := s.timeRange()
	if !ok {
		s.xMax = time.Now()
		s.xMin = s.xMax.Add(-s.window)
		return
	}
	s.xMin, s.xMax = first, last
	// Ensure minimum window
	if s.xMax.Sub(s.xMin) < s.window {
		s.xMin = s.xMax.Add(-s.window)
	}
}

func (s *ScopeWidget) timeRange() (first, last time.Time, ok bool) {
	for _, trace := range s.display {
		if len(trace) == 0 {
			continue
		}
		if !ok || trace[0].Timestamp.Before(first) {
			first = trace[0].Timestamp
		}
		if !ok || trace[len(trace)-1].Timestamp.After(last) {
			last = trace[len(trace)-1].Timestamp
		}
		ok = true
	}
	return first, last, ok
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
