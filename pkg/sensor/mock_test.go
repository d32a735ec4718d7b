package sensor

import (
	"testing"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		SampleRate:     10 * time.Millisecond,
		CrossingPeriod: 4 * time.Second,
		DwellTime:      800 * time.Millisecond,
		PassingInches:  12,
		IdleInches:     48,
		NoiseInches:    0,
		RightToLeftPct: 0,
	}
}

func TestNewMock(t *testing.T) {
	cfg := testMockConfig()
	dev := NewMock(cfg)

	assert.NotNil(t, dev)
	assert.Equal(t, cfg, dev.cfg)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	require.NotNil(t, dev.cfg)
	assert.Equal(t, config.Default().Mock, *dev.cfg)
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := NewMock(testMockConfig())

	require.NoError(t, dev.Connect())
	defer dev.Close()

	err := dev.Connect()
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestMock_Close(t *testing.T) {
	dev := NewMock(testMockConfig())
	assert.NoError(t, dev.Close()) // not connected

	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())
	assert.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
}

func TestMock_generateSample_Walker(t *testing.T) {
	cfg := testMockConfig()
	dev := NewMock(cfg)
	dev.startTime = time.Unix(0, 0)

	at := func(d time.Duration) time.Time { return dev.startTime.Add(d) }
	idle := uint32(48 * MicrosPerInch)
	passing := uint32(12 * MicrosPerInch)

	tests := []struct {
		name      string
		offset    time.Duration
		wantLeft  uint32
		wantRight uint32
	}{
		{"before walker", 500 * time.Millisecond, idle, idle},
		{"first sensor only", 1100 * time.Millisecond, passing, idle},
		{"both sensors", 1500 * time.Millisecond, passing, passing},
		{"second sensor only", 1900 * time.Millisecond, idle, passing},
		{"after walker", 2500 * time.Millisecond, idle, idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left := dev.generateSample(at(tt.offset), Left)
			right := dev.generateSample(at(tt.offset), Right)
			assert.Equal(t, Left, left.Channel)
			assert.Equal(t, Right, right.Channel)
			assert.Equal(t, tt.wantLeft, left.Echo)
			assert.Equal(t, tt.wantRight, right.Echo)
		})
	}
}

func TestMock_firstChannel(t *testing.T) {
	cfg := testMockConfig()
	dev := NewMock(cfg)

	for walker := int64(0); walker < 20; walker++ {
		assert.Equal(t, Left, dev.firstChannel(walker))
	}

	cfg.RightToLeftPct = 100
	for walker := int64(0); walker < 20; walker++ {
		assert.Equal(t, Right, dev.firstChannel(walker))
	}
}

func TestMock_GeneratesBothChannels(t *testing.T) {
	dev := NewMock(testMockConfig())
	require.NoError(t, dev.Connect())
	defer dev.Close()

	seen := map[Channel]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case s := <-dev.Samples():
			seen[s.Channel] = true
		case <-timeout:
			t.Fatal("did not receive samples from both channels")
		}
	}
}
