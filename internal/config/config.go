// Package config loads engine configuration.
//
// Sources, lowest precedence first: built-in defaults, a YAML file,
// LIFECYCLE_* environment variables. The merged file and environment
// values are checked against an embedded CUE schema before they are
// applied, so a bad value is reported with its field path.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roach88/lifecycle/internal/telemetry"
)

// DefaultStorePath is the SQLite database used when none is configured.
const DefaultStorePath = "lifecycle.db"

// Config is the resolved configuration.
type Config struct {
	Telemetry telemetry.Config
	StorePath string
	LogLevel  slog.Level
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Telemetry: telemetry.DefaultConfig(),
		StorePath: DefaultStorePath,
		LogLevel:  slog.LevelInfo,
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOption configures Load and Parse.
type LoadOption func(*loader)

type loader struct {
	lookup LookupFunc
}

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(fn LookupFunc) LoadOption {
	return func(l *loader) {
		l.lookup = fn
	}
}

// WithoutEnv ignores the environment entirely.
func WithoutEnv() LoadOption {
	return WithLookup(func(string) (string, bool) { return "", false })
}

// Load reads the YAML file at path and resolves it. An empty path skips
// the file and resolves defaults plus environment.
func Load(path string, opts ...LoadOption) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := Parse(data, opts...)
	if err != nil && path != "" {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, err
}

// Parse resolves configuration from YAML bytes. Empty data is allowed.
func Parse(data []byte, opts ...LoadOption) (Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}

	fc, err := decodeFile(data)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&fc, l.lookup); err != nil {
		return Config{}, err
	}
	if err := validateSchema(fc.values()); err != nil {
		return Config{}, err
	}
	return resolve(fc)
}

func resolve(fc fileConfig) (Config, error) {
	cfg := Default()
	t := &cfg.Telemetry
	ft := fc.Telemetry

	if ft.BatchSize != nil {
		t.BatchSize = *ft.BatchSize
	}
	if ft.FlushInterval != nil {
		d, err := parseDuration("telemetry.flush_interval", *ft.FlushInterval)
		if err != nil {
			return Config{}, err
		}
		t.FlushInterval = d
	}
	if ft.ProgressInterval != nil {
		d, err := parseDuration("telemetry.progress_interval", *ft.ProgressInterval)
		if err != nil {
			return Config{}, err
		}
		t.ProgressInterval = d
	}
	if ft.ProgressDelta != nil {
		t.ProgressDelta = *ft.ProgressDelta
	}
	if ft.QueueCapacity != nil {
		t.QueueCapacity = *ft.QueueCapacity
	}
	if ft.OverflowPolicy != nil {
		t.OverflowPolicy = telemetry.OverflowPolicy(*ft.OverflowPolicy)
	}
	if ft.DeviceType != nil {
		t.DeviceType = *ft.DeviceType
	}
	if fc.Store.Path != nil {
		cfg.StorePath = *fc.Store.Path
	}
	if fc.Log.Level != nil {
		if err := cfg.LogLevel.UnmarshalText([]byte(*fc.Log.Level)); err != nil {
			return Config{}, &FieldError{Field: "log.level", Message: err.Error()}
		}
	}

	if err := cfg.Telemetry.Validate(); err != nil {
		return Config{}, &FieldError{Field: "telemetry", Message: err.Error()}
	}
	return cfg, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &FieldError{Field: field, Message: err.Error()}
	}
	if d <= 0 {
		return 0, &FieldError{Field: field, Message: "must be positive"}
	}
	return d, nil
}

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// IsFieldError reports whether err carries a FieldError for field. An
// empty field matches any FieldError.
func IsFieldError(err error, field string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *FieldError:
		return field == "" || e.Field == field
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsFieldError(inner, field) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsFieldError(e.Unwrap(), field)
	}
	return false
}

// String renders the configuration for `--verbose` startup logs.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store=%s log=%s", c.StorePath, c.LogLevel)
	t := c.Telemetry
	fmt.Fprintf(&b, " batch=%d flush=%s progress=%s/%g capacity=%d overflow=%s device=%s",
		t.BatchSize, t.FlushInterval, t.ProgressInterval, t.ProgressDelta,
		t.QueueCapacity, t.OverflowPolicy, t.DeviceType)
	return b.String()
}
