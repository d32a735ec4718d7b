//go:build tinygo

package main

import "machine"

const (
	// Ranging configuration
	TRIGGER_INTERVAL_MS = 100   // Minimum time between trigger pulses (start to start)
	TRIGGER_PAUSE_US    = 10    // Trigger pulse width
	MAX_ULTRA_RANGE_US  = 10000 // Longest echo worth waiting for; longer reads as 0

	// Sensor pins (HC-SR04 pair)
	PIN_LEFT_TRIGGER  = machine.D1
	PIN_LEFT_ECHO     = machine.D2
	PIN_RIGHT_TRIGGER = machine.D3
	PIN_RIGHT_ECHO    = machine.D4

	// Serial configuration
	// Format "unix_micros,channel,echo_us\n", e.g. "1700000000000000,1,10000\n" = 25 bytes max
	// 10 lines/sec * 25 bytes/line = 250 bytes/sec
	// UART 8N1: 10 bits/byte = 2,500 baud minimum
	// 9600 provides ~3.8x headroom
	SERIAL_TX_RATE = 9600
)
