// Package debuglog implements the tiered debug channel.
//
// Four tiers can be switched on independently: human actions, system actions,
// state changes and variable/branch level detail. Output goes to stderr and,
// when configured, to a rotated log file and a serial mirror running at the
// configured transmit rate.
package debuglog

import (
	"fmt"
	"io"
	"os"

	"github.com/itohio/goxing/pkg/config"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Tier is a debug verbosity tier.
type Tier int

const (
	Human    Tier = iota // Human action info
	System               // System action info
	State                // State change info
	Variable             // Variable or branch change info
)

var tierNames = [...]string{"human", "system", "state", "variable"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier%d", int(t))
	}
	return tierNames[t]
}

func (t Tier) level() logrus.Level {
	switch t {
	case Human, System:
		return logrus.InfoLevel
	case State:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// Logger writes tier-gated debug messages. A nil *Logger discards everything.
type Logger struct {
	log     *logrus.Logger
	enabled [4]bool
	closers []io.Closer
}

// New creates a logger from the debug configuration, opening the optional
// file and serial sinks. Close releases them.
func New(cfg *config.DebugConfig) (*Logger, error) {
	writers := []io.Writer{os.Stderr}
	var closers []io.Closer

	if cfg.File != "" {
		f := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writers = append(writers, f)
		closers = append(closers, f)
	}

	if cfg.SerialPort != "" {
		port, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: cfg.SerialTxRate})
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, fmt.Errorf("failed to open debug serial port %s: %w", cfg.SerialPort, err)
		}
		writers = append(writers, port)
		closers = append(closers, port)
	}

	l := NewWithWriter(cfg, io.MultiWriter(writers...))
	l.closers = closers
	return l, nil
}

// NewWithWriter creates a logger writing to w only.
func NewWithWriter(cfg *config.DebugConfig, w io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.TraceLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return &Logger{
		log:     log,
		enabled: [4]bool{cfg.Human, cfg.System, cfg.State, cfg.Variable},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return nil
}

// Enabled reports whether messages of tier t are written.
func (l *Logger) Enabled(t Tier) bool {
	if l == nil || t < 0 || int(t) >= len(l.enabled) {
		return false
	}
	return l.enabled[t]
}

// Printf writes a message at tier t if the tier is enabled.
func (l *Logger) Printf(t Tier, format string, args ...any) {
	if !l.Enabled(t) {
		return
	}
	l.log.WithField("tier", t.String()).Logf(t.level(), format, args...)
}

// Human writes a human action message.
func (l *Logger) Human(format string, args ...any) { l.Printf(Human, format, args...) }

// System writes a system action message.
func (l *Logger) System(format string, args ...any) { l.Printf(System, format, args...) }

// State writes a state change message.
func (l *Logger) State(format string, args ...any) { l.Printf(State, format, args...) }

// Variable writes a variable or branch level message.
func (l *Logger) Variable(format string, args ...any) { l.Printf(Variable, format, args...) }

// Close closes the file and serial sinks.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}
