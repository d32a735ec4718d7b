// Package pipeline wires a sensor device through classification into a
// crossing detector and tears the chain down in order.
package pipeline

import (
	"fmt"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/debuglog"
	"github.com/itohio/goxing/pkg/sample"
	"github.com/itohio/goxing/pkg/sensor"
)

// Device kinds accepted by NewDevice.
const (
	DeviceSerial = "serial"
	DeviceGPIO   = "gpio"
	DeviceMock   = "mock"
)

// DefaultBufferSize is the buffer between converter and detector.
const DefaultBufferSize = 500

// NewDevice creates the device named by kind.
func NewDevice(cfg *config.Config, kind string, log *debuglog.Logger) (sensor.Device, error) {
	switch kind {
	case DeviceSerial, "":
		return sensor.New(cfg.Serial.Port, cfg.Serial.BaudRate, sensor.DefaultBufferSize, log), nil
	case DeviceGPIO:
		return sensor.NewGPIO(cfg, log), nil
	case DeviceMock:
		return sensor.NewMock(&cfg.Mock), nil
	default:
		return nil, fmt.Errorf("unknown device %q (want %s, %s or %s)", kind, DeviceSerial, DeviceGPIO, DeviceMock)
	}
}

// Chain is a running device → converter → detector chain.
type Chain struct {
	device       sensor.Device
	detectorDone chan struct{}
}

// Start connects device and feeds its samples into detector.
// Callbacks must be registered on detector before calling Start.
func Start(cfg *config.Config, device sensor.Device, detector *crossing.Detector, log *debuglog.Logger) (*Chain, error) {
	if err := device.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// State from a previous chain must not leak into this one.
	detector.Reset()

	var converter sample.Converter
	if cfg.Measurement.AverageSamples > 1 {
		converter = sample.NewAveragingConverter(cfg, cfg.Measurement.AverageSamples, DefaultBufferSize, log)
	} else {
		converter = sample.NewConverter(cfg, DefaultBufferSize, log)
	}
	samples := converter(device.Samples())

	done := make(chan struct{})
	go func() {
		defer close(done)
		detector.ProcessSamples(samples)
	}()

	log.System("measurement chain started")
	return &Chain{device: device, detectorDone: done}, nil
}

// Device returns the device feeding the chain.
func (c *Chain) Device() sensor.Device {
	return c.device
}

// Close closes the device and waits for the detector to drain.
func (c *Chain) Close() error {
	if c == nil {
		return nil
	}

	// Closing the device closes its samples channel; the converter then
	// closes its output and ProcessSamples returns.
	err := c.device.Close()
	<-c.detectorDone
	return err
}
