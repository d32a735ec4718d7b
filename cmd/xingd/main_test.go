package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShow_Defaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := execute(t, "--config", missing, "config", "show")
	require.NoError(t, err)

	for _, line := range []string{
		"TZONE=-5 h",
		"SERIALTXRATE=9600 bit/s",
		"MININCHES=2 in",
		"MAXINCHES=20 in",
		"SAMPLECOUNT=1 samples",
		"MAXTIMEBTNSAMPLES=300000 us",
		"MAXTSDIFF=10000000 us",
		"MAXULTRARANGE=10000 native",
		"CLOUDUPDATEINTERVAL=90000000 us",
		"TRIGGERINTERVAL=100 ms",
		"TRIGGERPAUSE=10 us",
		"WEBHOOKID1=xing1",
		"WEBHOOKID2=xing2",
		"DBGLVL0=1",
		"DBGLVL3=1",
	} {
		assert.Contains(t, out, line+"\n")
	}
	assert.Contains(t, out, "15 minutes")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	out, err = execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestConfigValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensor:\n  min_inches: 30\n"), 0644))

	_, err := execute(t, "config", "validate", path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunOptions_LoadConfigOverrides(t *testing.T) {
	opts := &runOptions{
		rootOptions:    &rootOptions{configPath: filepath.Join(t.TempDir(), "none.yaml")},
		port:           "/dev/ttyUSB1",
		averageSamples: 4,
	}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 4, cfg.Measurement.AverageSamples)

	opts.port, opts.averageSamples = "", -1
	cfg, err = opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 0, cfg.Measurement.AverageSamples)
}

func TestNewOutputs_DisabledWithoutURLs(t *testing.T) {
	out, err := newOutputs(config.Default(), nil)
	require.NoError(t, err)
	assert.Nil(t, out.dispatcher)
	assert.Nil(t, out.reporter)

	// Nothing enabled, nothing to panic on.
	out.handle(crossing.Event{Direction: crossing.Left})
	out.run(context.Background())()
}

func TestNewOutputs_Enabled(t *testing.T) {
	cfg := config.Default()
	cfg.Webhook.BaseURL = "http://127.0.0.1:1/hooks"
	cfg.Cloud.URL = "http://127.0.0.1:1/report"
	cfg.Cloud.Secret = "s3cret"

	out, err := newOutputs(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, out.dispatcher)
	require.NotNil(t, out.reporter)

	out.handle(crossing.Event{Direction: crossing.Right})
	assert.Equal(t, crossing.Counts{Right: 1}, out.reporter.Pending())
}

func TestRunDaemon_MockUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := config.Default()
	cfg.Debug.Variable = false
	cfg.Debug.File = filepath.Join(dir, "xingd.log")
	cfg.Mock.SampleRate = 5 * time.Millisecond
	cfg.Mock.CrossingPeriod = 200 * time.Millisecond
	cfg.Mock.DwellTime = 50 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	opts := &runOptions{rootOptions: &rootOptions{configPath: path}, device: "mock", averageSamples: -1}
	require.NoError(t, runDaemon(ctx, opts))

	data, err := os.ReadFile(cfg.Debug.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shutting down")
	assert.Contains(t, string(data), "counted")
}

func TestRunDaemon_UnknownDevice(t *testing.T) {
	opts := &runOptions{
		rootOptions:    &rootOptions{configPath: filepath.Join(t.TempDir(), "none.yaml")},
		device:         "carrier-pigeon",
		averageSamples: -1,
	}
	err := runDaemon(context.Background(), opts)
	assert.Error(t, err)
}
