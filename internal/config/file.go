package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout. Pointer fields distinguish absent
// from zero.
type fileConfig struct {
	Telemetry fileTelemetry `yaml:"telemetry"`
	Store     fileStore     `yaml:"store"`
	Log       fileLog       `yaml:"log"`
}

type fileTelemetry struct {
	BatchSize        *int     `yaml:"batch_size"`
	FlushInterval    *string  `yaml:"flush_interval"`
	ProgressInterval *string  `yaml:"progress_interval"`
	ProgressDelta    *float64 `yaml:"progress_delta"`
	QueueCapacity    *int     `yaml:"queue_capacity"`
	OverflowPolicy   *string  `yaml:"overflow_policy"`
	DeviceType       *string  `yaml:"device_type"`
}

type fileStore struct {
	Path *string `yaml:"path"`
}

type fileLog struct {
	Level *string `yaml:"level"`
}

// decodeFile strictly decodes YAML. Unknown keys are errors.
func decodeFile(data []byte) (fileConfig, error) {
	var fc fileConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return fc, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// Environment variables, one per field.
const (
	EnvBatchSize        = "LIFECYCLE_BATCH_SIZE"
	EnvFlushInterval    = "LIFECYCLE_FLUSH_INTERVAL"
	EnvProgressInterval = "LIFECYCLE_PROGRESS_INTERVAL"
	EnvProgressDelta    = "LIFECYCLE_PROGRESS_DELTA"
	EnvQueueCapacity    = "LIFECYCLE_QUEUE_CAPACITY"
	EnvOverflowPolicy   = "LIFECYCLE_OVERFLOW_POLICY"
	EnvDeviceType       = "LIFECYCLE_DEVICE_TYPE"
	EnvStorePath        = "LIFECYCLE_STORE_PATH"
	EnvLogLevel         = "LIFECYCLE_LOG_LEVEL"
)

func applyEnv(fc *fileConfig, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	var errs []error

	setInt := func(key, field string, dst **int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf("%s: not an integer: %q", key, v)})
				return
			}
			*dst = &n
		}
	}
	setString := func(key string, dst **string) {
		if v, ok := lookup(key); ok {
			*dst = &v
		}
	}

	setInt(EnvBatchSize, "telemetry.batch_size", &fc.Telemetry.BatchSize)
	setString(EnvFlushInterval, &fc.Telemetry.FlushInterval)
	setString(EnvProgressInterval, &fc.Telemetry.ProgressInterval)
	if v, ok := lookup(EnvProgressDelta); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, &FieldError{Field: "telemetry.progress_delta", Message: fmt.Sprintf("%s: not a number: %q", EnvProgressDelta, v)})
		} else {
			fc.Telemetry.ProgressDelta = &f
		}
	}
	setInt(EnvQueueCapacity, "telemetry.queue_capacity", &fc.Telemetry.QueueCapacity)
	setString(EnvOverflowPolicy, &fc.Telemetry.OverflowPolicy)
	setString(EnvDeviceType, &fc.Telemetry.DeviceType)
	setString(EnvStorePath, &fc.Store.Path)
	setString(EnvLogLevel, &fc.Log.Level)

	return errors.Join(errs...)
}

// values renders the set fields as plain maps for schema validation.
func (fc fileConfig) values() map[string]any {
	out := map[string]any{}

	t := map[string]any{}
	putInt(t, "batch_size", fc.Telemetry.BatchSize)
	putString(t, "flush_interval", fc.Telemetry.FlushInterval)
	putString(t, "progress_interval", fc.Telemetry.ProgressInterval)
	if fc.Telemetry.ProgressDelta != nil {
		t["progress_delta"] = *fc.Telemetry.ProgressDelta
	}
	putInt(t, "queue_capacity", fc.Telemetry.QueueCapacity)
	putString(t, "overflow_policy", fc.Telemetry.OverflowPolicy)
	putString(t, "device_type", fc.Telemetry.DeviceType)
	if len(t) > 0 {
		out["telemetry"] = t
	}

	if fc.Store.Path != nil {
		out["store"] = map[string]any{"path": *fc.Store.Path}
	}
	if fc.Log.Level != nil {
		out["log"] = map[string]any{"level": *fc.Log.Level}
	}
	return out
}

func putInt(m map[string]any, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}
