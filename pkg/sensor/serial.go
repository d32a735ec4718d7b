package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itohio/goxing/pkg/debuglog"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the firmware UART rate.
	DefaultBaudRate = 9600
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads ranging records from the sensor MCU over a serial link.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	log      *debuglog.Logger

	conn      serial.Port
	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}
}

// New creates a serial device for the specified port, baud rate and buffer size.
func New(port string, baudRate int, bufSize int, log *debuglog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      log,
		samples:  make(chan RawSample, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}

	return result, nil
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.done = make(chan struct{})
	d.log.System("serial %s opened at %d baud", d.port, d.baudRate)

	// The MCU has no wall clock; give it ours so its timestamps are comparable.
	if _, err := io.WriteString(port, FormatSync(time.Now())); err != nil {
		d.log.System("serial %s clock sync failed: %v", d.port, err)
	}

	go d.readSamples(port)

	return nil
}

// Close closes the connection and the samples channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()

	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	d.connected = false
	done := d.done
	d.mu.Unlock()

	// The reader is the only sender; wait for it before closing the channel.
	<-done
	close(d.samples)

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	d.log.System("serial %s closed", d.port)
	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSamples reads lines from r and parses them into RawSamples.
func (d *Serial) readSamples(r io.Reader) {
	defer close(d.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if d.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sample, err := ParseLine(line)
		if err != nil {
			d.log.System("failed to parse line %q: %v", line, err)
			continue
		}
		d.log.Variable("raw %s echo=%d", sample.Channel, sample.Echo)

		select {
		case d.samples <- sample:
		case <-d.ctx.Done():
			return
		default:
			d.log.System("samples channel full, dropping sample")
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		d.log.System("error reading from serial port: %v", err)
	}
}

// ParseLine parses a line from the sensor MCU into a RawSample.
// Format: unix_micros,channel,echo_us
// Example: 1700000000000000,0,812
func ParseLine(line string) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 3 comma-separated values, got %d", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	channel, err := strconv.Atoi(parts[1])
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid channel: %w", err)
	}
	if channel != int(Left) && channel != int(Right) {
		return RawSample{}, fmt.Errorf("channel out of range: %d", channel)
	}

	echo, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid echo: %w", err)
	}

	return RawSample{
		Timestamp: time.UnixMicro(timestampMicros),
		Channel:   Channel(channel),
		Echo:      uint32(echo),
	}, nil
}

// FormatLine renders a RawSample in the wire format understood by ParseLine.
func FormatLine(s RawSample) string {
	return fmt.Sprintf("%d,%d,%d", s.Timestamp.UnixMicro(), int(s.Channel), s.Echo)
}

// FormatSync renders the clock sync command sent to the MCU on connect.
// Format: T<unix_micros>\n
func FormatSync(t time.Time) string {
	return fmt.Sprintf("T%d\n", t.UnixMicro())
}
