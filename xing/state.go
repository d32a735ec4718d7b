package main

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/pipeline"
	"github.com/itohio/goxing/pkg/sample"
	"github.com/itohio/goxing/pkg/scope"
	"github.com/itohio/goxing/pkg/sensor"
)

// updateInterval throttles scope redraws to ~30 FPS.
const updateInterval = 33 * time.Millisecond

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	log        *debuglog.Logger
	deviceKind string
	port       string
	detector   *crossing.Detector
	history    *history
	chain      *pipeline.Chain // Current measurement chain (nil if not connected)

	window      fyne.Window
	connectBtn  *widget.Button
	statusLabel *widget.Label
	countsLabel *widget.Label
	occupancy   [2]*widget.Label
	eventList   *widget.List
	scopeWidget *scope.ScopeWidget
	events      []crossing.Event // Owned by the Fyne thread

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

func (s *appState) connected() bool {
	return s.chain != nil && s.chain.Device().IsConnected()
}

// deviceConfig returns the configuration used for the next chain. The loaded
// configuration is never modified; a port chosen in the UI goes into a copy.
func (s *appState) deviceConfig() *config.Config {
	cfg := *s.cfg
	cfg.Serial.Port = s.port
	return &cfg
}

func (s *appState) deviceLabel() string {
	if s.deviceKind == pipeline.DeviceSerial || s.deviceKind == "" {
		return s.port
	}
	return s.deviceKind
}

// connect builds and starts a new measurement chain.
func (s *appState) connect() error {
	// Drop a chain whose device went away on its own
	s.disconnect()

	cfg := s.deviceConfig()
	device, err := pipeline.NewDevice(cfg, s.deviceKind, s.log)
	if err != nil {
		return err
	}

	s.history.Reset()
	chain, err := pipeline.Start(cfg, device, s.detector, s.log)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.deviceLabel(), err)
	}
	s.chain = chain
	s.log.Human("connected to %s", s.deviceLabel())
	return nil
}

// disconnect gracefully closes the measurement chain.
func (s *appState) disconnect() {
	if s.chain == nil {
		return
	}
	if err := s.chain.Close(); err != nil {
		s.log.System("close %s: %v", s.deviceLabel(), err)
	}
	s.chain = nil
	s.log.Human("disconnected from %s", s.deviceLabel())
}

// handleUpdate runs on the detector goroutine for every sample.
func (s *appState) handleUpdate(smp sample.Sample, occupied [2]bool) {
	s.history.Add(smp)

	// Throttle updates to prevent UI from being overwhelmed
	s.updateMu.Lock()
	now := time.Now()
	if now.Sub(s.lastUpdateTime) < updateInterval {
		s.updateMu.Unlock()
		return
	}
	s.lastUpdateTime = now
	s.updateMu.Unlock()

	// Copy data quickly here, apply it on the main thread
	samples := s.history.Snapshot()
	events := s.detector.Events()
	counts := s.detector.Counts()

	fyne.Do(func() {
		s.scopeWidget.UpdateData(samples, events)
		s.countsLabel.SetText(formatCounts(counts))
		for ch, label := range s.occupancy {
			label.SetText(formatOccupancy(sensor.Channel(ch), occupied[ch]))
		}
	})
}

// handleEvent runs on the detector goroutine for every completed crossing.
func (s *appState) handleEvent(ev crossing.Event) {
	counts := s.detector.Counts()
	fyne.Do(func() {
		s.events = append(s.events, ev)
		if limit := s.cfg.Measurement.History; limit > 0 && len(s.events) > limit {
			s.events = s.events[len(s.events)-limit:]
		}
		s.eventList.Refresh()
		s.countsLabel.SetText(formatCounts(counts))
	})
}

func formatCounts(c crossing.Counts) string {
	return fmt.Sprintf("→ %d   ← %d   Σ %d", c.Left, c.Right, c.Total())
}

func formatOccupancy(ch sensor.Channel, occupied bool) string {
	mark := "○"
	if occupied {
		mark = "●"
	}
	return fmt.Sprintf("%s %s", ch, mark)
}

func formatEvent(ev crossing.Event, loc *time.Location) string {
	return fmt.Sprintf("%s %-5s %.2fs", ev.Start.In(loc).Format(time.TimeOnly), ev.Direction, ev.Duration().Seconds())
}
