package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes batching, throttling and the pending queue bound.
type Config struct {
	// BatchSize is both the flush trigger and the maximum number of step
	// events per batch.
	BatchSize int

	// FlushInterval is the minimum time between tick-driven flushes.
	FlushInterval time.Duration

	// ProgressInterval and ProgressDelta throttle download progress
	// events. An event passes if either bound is met.
	ProgressInterval time.Duration
	ProgressDelta    float64

	// QueueCapacity bounds the pending queue. Zero means unbounded.
	QueueCapacity  int
	OverflowPolicy OverflowPolicy

	// DeviceType is reported in every attempt summary.
	DeviceType string
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:        20,
		FlushInterval:    5 * time.Second,
		ProgressInterval: 2 * time.Second,
		ProgressDelta:    10,
		QueueCapacity:    1000,
		OverflowPolicy:   DropOldest,
		DeviceType:       "desktop",
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval))
	}
	if c.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("progress interval must not be negative, got %s", c.ProgressInterval))
	}
	if c.ProgressDelta < 0 {
		errs = append(errs, fmt.Errorf("progress delta must not be negative, got %g", c.ProgressDelta))
	}
	if c.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("queue capacity must not be negative, got %d", c.QueueCapacity))
	}
	if c.QueueCapacity > 0 && c.QueueCapacity < c.BatchSize {
		errs = append(errs, fmt.Errorf("queue capacity %d is below batch size %d", c.QueueCapacity, c.BatchSize))
	}
	if _, err := ParseOverflowPolicy(string(c.OverflowPolicy)); err != nil {
		errs = append(errs, err)
	}
	if c.DeviceType == "" {
		errs = append(errs, errors.New("device type must not be empty"))
	}
	return errors.Join(errs...)
}
