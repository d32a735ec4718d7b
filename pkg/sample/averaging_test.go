package sample

import (
	"testing"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageEcho(t *testing.T) {
	tests := []struct {
		name   string
		echoes []uint32
		want   uint32
	}{
		{"empty", nil, 0},
		{"single", []uint32{812}, 812},
		{"exact mean", []uint32{100, 200, 300}, 200},
		{"rounds half up", []uint32{100, 101}, 101},
		{"rounds down", []uint32{100, 100, 101}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, averageEcho(tt.echoes))
		})
	}
}

func runAveraging(t *testing.T, window int, raws []sensor.RawSample) []Sample {
	t.Helper()
	cfg := config.Default()
	converter := NewAveragingConverter(cfg, window, 10, nil)

	input := make(chan sensor.RawSample, len(raws))
	for _, r := range raws {
		input <- r
	}
	close(input)

	var got []Sample
	for s := range converter(input) {
		got = append(got, s)
	}
	require.Len(t, got, len(raws))
	return got
}

func TestAveragingConverter_MovingAverage(t *testing.T) {
	now := time.Now()
	got := runAveraging(t, 3, []sensor.RawSample{
		{Timestamp: now, Channel: sensor.Left, Echo: 300},
		{Timestamp: now, Channel: sensor.Left, Echo: 600},
		{Timestamp: now, Channel: sensor.Left, Echo: 900},
		{Timestamp: now, Channel: sensor.Left, Echo: 1200},
	})

	assert.Equal(t, uint32(300), got[0].Echo)
	assert.Equal(t, uint32(450), got[1].Echo)
	assert.Equal(t, uint32(600), got[2].Echo)
	assert.Equal(t, uint32(900), got[3].Echo) // oldest dropped
}

func TestAveragingConverter_ChannelsAreIndependent(t *testing.T) {
	now := time.Now()
	got := runAveraging(t, 4, []sensor.RawSample{
		{Timestamp: now, Channel: sensor.Left, Echo: 300},
		{Timestamp: now, Channel: sensor.Right, Echo: 3000},
		{Timestamp: now, Channel: sensor.Left, Echo: 500},
	})

	assert.Equal(t, uint32(300), got[0].Echo)
	assert.Equal(t, uint32(3000), got[1].Echo)
	assert.Equal(t, uint32(400), got[2].Echo)
}

func TestAveragingConverter_InvalidBypassesWindow(t *testing.T) {
	now := time.Now()
	got := runAveraging(t, 4, []sensor.RawSample{
		{Timestamp: now, Channel: sensor.Left, Echo: 400},
		{Timestamp: now, Channel: sensor.Left, Echo: 0},
		{Timestamp: now, Channel: sensor.Left, Echo: 60000},
		{Timestamp: now, Channel: sensor.Left, Echo: 600},
	})

	assert.Equal(t, InRange, got[0].Status)
	assert.Equal(t, Invalid, got[1].Status)
	assert.Equal(t, Invalid, got[2].Status)
	assert.Equal(t, uint32(500), got[3].Echo)
}

func TestAveragingConverter_WindowOfOneIsPassThrough(t *testing.T) {
	now := time.Now()
	got := runAveraging(t, 0, []sensor.RawSample{
		{Timestamp: now, Channel: sensor.Left, Echo: 400},
		{Timestamp: now, Channel: sensor.Left, Echo: 3000},
	})

	assert.Equal(t, uint32(400), got[0].Echo)
	assert.Equal(t, uint32(3000), got[1].Echo)
	assert.Equal(t, OutOfBand, got[1].Status)
}
