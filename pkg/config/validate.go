package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is returned (wrapped) by Validate when any invariant is violated.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration invariants and reports every violation at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Sensor.MinInches < 0 {
		errs = append(errs, fmt.Errorf("min_inches must not be negative, got %d", c.Sensor.MinInches))
	}
	if c.Sensor.MinInches >= c.Sensor.MaxInches {
		errs = append(errs, fmt.Errorf("min_inches (%d) must be below max_inches (%d)", c.Sensor.MinInches, c.Sensor.MaxInches))
	}
	if c.Sensor.SampleCount < 1 {
		errs = append(errs, fmt.Errorf("sample_count must be at least 1, got %d", c.Sensor.SampleCount))
	}
	if c.Sensor.MaxUltraRange <= 0 {
		errs = append(errs, fmt.Errorf("max_ultra_range must be positive, got %d", c.Sensor.MaxUltraRange))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"sensor.max_time_between_samples", c.Sensor.MaxTimeBetweenSamples},
		{"sensor.max_timestamp_diff", c.Sensor.MaxTimestampDiff},
		{"sensor.trigger_interval", c.Sensor.TriggerInterval},
		{"sensor.trigger_pause", c.Sensor.TriggerPause},
		{"measurement.crossing_timeout", c.Measurement.CrossingTimeout},
		{"webhook.timeout", c.Webhook.Timeout},
		{"cloud.update_interval", c.Cloud.UpdateInterval},
		{"cloud.token_ttl", c.Cloud.TokenTTL},
		{"cloud.timeout", c.Cloud.Timeout},
		{"mock.sample_rate", c.Mock.SampleRate},
		{"mock.crossing_period", c.Mock.CrossingPeriod},
		{"mock.dwell_time", c.Mock.DwellTime},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", d.name, d.d))
		}
	}
	if c.Sensor.TriggerPause >= c.Sensor.TriggerInterval {
		errs = append(errs, fmt.Errorf("trigger_pause (%s) must be shorter than trigger_interval (%s)", c.Sensor.TriggerPause, c.Sensor.TriggerInterval))
	}

	if c.Webhook.LeftID == "" {
		errs = append(errs, errors.New("webhook left_id must not be empty"))
	}
	if c.Webhook.RightID == "" {
		errs = append(errs, errors.New("webhook right_id must not be empty"))
	}
	if c.Webhook.LeftID != "" && c.Webhook.LeftID == c.Webhook.RightID {
		errs = append(errs, fmt.Errorf("webhook ids must be distinct, both are %q", c.Webhook.LeftID))
	}
	if c.Webhook.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("webhook queue_size must be at least 1, got %d", c.Webhook.QueueSize))
	}

	if c.Cloud.TimeZone < -12 || c.Cloud.TimeZone > 14 {
		errs = append(errs, fmt.Errorf("time_zone must be within [-12, 14], got %d", c.Cloud.TimeZone))
	}

	if c.Debug.SerialTxRate <= 0 {
		errs = append(errs, fmt.Errorf("serial_tx_rate must be positive, got %d", c.Debug.SerialTxRate))
	}
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial baud_rate must be positive, got %d", c.Serial.BaudRate))
	}

	if c.Measurement.AverageSamples < 0 {
		errs = append(errs, fmt.Errorf("average_samples must not be negative, got %d", c.Measurement.AverageSamples))
	}
	if c.Mock.RightToLeftPct < 0 || c.Mock.RightToLeftPct > 100 {
		errs = append(errs, fmt.Errorf("mock right_to_left_pct must be within [0, 100], got %d", c.Mock.RightToLeftPct))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
