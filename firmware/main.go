//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

// sensorPins is one HC-SR04 trigger/echo pair.
type sensorPins struct {
	trigger machine.Pin
	echo    machine.Pin
}

var (
	uart = machine.UART0

	sensors = [2]sensorPins{
		{trigger: PIN_LEFT_TRIGGER, echo: PIN_LEFT_ECHO},
		{trigger: PIN_RIGHT_TRIGGER, echo: PIN_RIGHT_ECHO},
	}

	// Host clock offset in microseconds, set by the "T<unix_micros>" command
	clockOffset int64

	// Timing
	lastTrigger time.Time

	// Serial buffer for reading lines
	serialBuffer [24]byte
	serialPos    int
)

func main() {
	for _, s := range sensors {
		s.trigger.Configure(machine.PinConfig{Mode: machine.PinOutput})
		s.trigger.Low()
		s.echo.Configure(machine.PinConfig{Mode: machine.PinInput})
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: SERIAL_TX_RATE,
	})

	// Main loop: alternate sensors so one echo never reaches the other
	channel := 0
	for {
		processSerial()

		// Respect the minimum interval between trigger pulses
		if wait := time.Duration(TRIGGER_INTERVAL_MS)*time.Millisecond - time.Since(lastTrigger); wait > 0 {
			time.Sleep(wait)
		}

		lastTrigger = time.Now()
		echo := measure(sensors[channel])
		output(lastTrigger, channel, echo)

		channel = 1 - channel
	}
}

// measure fires one trigger pulse and returns the echo width in microseconds,
// or 0 when no echo arrived within MAX_ULTRA_RANGE_US.
func measure(s sensorPins) uint32 {
	s.trigger.High()
	time.Sleep(TRIGGER_PAUSE_US * time.Microsecond)
	s.trigger.Low()

	timeout := time.Duration(MAX_ULTRA_RANGE_US) * time.Microsecond

	// Wait for the echo to start
	start := time.Now()
	for !s.echo.Get() {
		if time.Since(start) > timeout {
			return 0
		}
	}

	// Measure how long it stays high
	rise := time.Now()
	for s.echo.Get() {
		if time.Since(rise) > timeout {
			return 0
		}
	}

	return uint32(time.Since(rise).Microseconds())
}

func output(ts time.Time, channel int, echo uint32) {
	// Output format: "unix_micros,channel,echo_us\n"
	// Example: "1700000000000000,0,812\n"
	print(ts.UnixMicro() + clockOffset)
	print(",")
	print(channel)
	print(",")
	print(echo)
	print("\n")
}

func processSerial() {
	// Read available bytes from serial
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos > 1 && serialPos < len(serialBuffer) && serialBuffer[0] == 'T' {
				syncClock(serialBuffer[1:serialPos])
			}
			// Reset buffer regardless of content
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
		// Overlong lines are ignored until the next newline
	}
}

// syncClock sets clockOffset from the host's unix microseconds.
func syncClock(digits []byte) {
	var hostMicros int64
	for _, d := range digits {
		if d < '0' || d > '9' {
			return
		}
		hostMicros = hostMicros*10 + int64(d-'0')
	}
	clockOffset = hostMicros - time.Now().UnixMicro()
}
