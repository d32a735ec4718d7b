package scope

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/itohio/goxing/pkg/sample"
	"github.com/itohio/goxing/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_UpdateDataSplitsChannels(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())

	now := time.Now()
	s.UpdateData([]sample.Sample{
		{Timestamp: now, Channel: sensor.Left, Inches: 48, Status: sample.OutOfBand},
		{Timestamp: now, Channel: sensor.Right, Inches: 12, Status: sample.InRange},
		{Timestamp: now.Add(time.Second), Channel: sensor.Left, Status: sample.Invalid},
		{Timestamp: now.Add(2 * time.Second), Channel: sensor.Left, Inches: 60, Status: sample.OutOfBand},
	}, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.display[sensor.Left], 2, "invalid samples are not plotted")
	assert.Len(t, s.display[sensor.Right], 1)
	assert.InDelta(t, 66, s.yMax, 0.001)
	assert.Equal(t, DefaultWindow, s.xMax.Sub(s.xMin))
}

func TestScope_EmptyScale(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.InDelta(t, 44, s.yMax, 0.001, "twice max_inches plus margin")
	assert.Equal(t, DefaultWindow, s.xMax.Sub(s.xMin))
}

func TestScope_Render(t *testing.T) {
	test.NewTempApp(t)
	s := New(config.Default())
	s.Resize(fyne.NewSize(600, 400))

	now := time.Now()
	samples := make([]sample.Sample, 0, 40)
	for i := range 20 {
		ts := now.Add(time.Duration(i) * 100 * time.Millisecond)
		samples = append(samples,
			sample.Sample{Timestamp: ts, Channel: sensor.Left, Inches: 30, Status: sample.OutOfBand},
			sample.Sample{Timestamp: ts, Channel: sensor.Right, Inches: 10, Status: sample.InRange},
		)
	}
	s.UpdateData(samples, []crossing.Event{{Direction: crossing.Right, Start: now, End: now.Add(time.Second)}})

	r := test.WidgetRenderer(s)
	require.NotNil(t, r)
	assert.Greater(t, len(r.Objects()), 1+2*19)
}

func TestPlot_Positions(t *testing.T) {
	now := time.Now()
	p := plot{x: 10, y: 0, width: 100, height: 50, yMax: 100, xMin: now, xMax: now.Add(10 * time.Second)}

	assert.InDelta(t, 10, p.posX(now), 0.001)
	assert.InDelta(t, 60, p.posX(now.Add(5*time.Second)), 0.001)
	assert.InDelta(t, 50, p.posY(0), 0.001)
	assert.InDelta(t, 0, p.posY(100), 0.001)

	flat := plot{x: 10, width: 100, height: 50}
	assert.InDelta(t, 10, flat.posX(now), 0.001)
	assert.InDelta(t, 50, flat.posY(5), 0.001)
}
