package sensor

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// Channel identifies one of the two sensors of a crossing gate.
type Channel int

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("channel%d", int(c))
	}
}

// Other returns the opposite channel.
func (c Channel) Other() Channel {
	if c == Left {
		return Right
	}
	return Left
}

// RawSample is a single ranging result.
type RawSample struct {
	Timestamp time.Time
	Channel   Channel
	Echo      uint32 // Echo pulse width in sensor-native units (µs)
}

// Device defines the interface for ranging devices (serial, GPIO or mocked).
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan RawSample
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*GPIO)(nil)
	_ Device = (*Mock)(nil)
)
