package tracing

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalidConfig is returned by Config.Validate when a required
// setting is missing or out of range. Construction fails fast on it
// rather than running with undefined behavior.
var ErrInvalidConfig = errors.New("tracing: invalid configuration")

// KindConfig holds the per-message-kind settings.
type KindConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`
}

// Config is the configuration surface consumed from the external
// config-loading collaborator.
type Config struct {
	// Enabled is the global switch; when false the interceptors pass
	// messages through unmodified and no span is ever exported.
	Enabled bool `envconfig:"ENABLED" default:"true"`

	Commands KindConfig `envconfig:"COMMANDS"`
	Queries  KindConfig `envconfig:"QUERIES"`
	Events   KindConfig `envconfig:"EVENTS"`

	// CapturePayload opts in to recording message payloads as span
	// attributes. Off by default.
	CapturePayload bool `envconfig:"CAPTURE_PAYLOAD" default:"false"`

	// PayloadMaxLength bounds captured payload values; longer values
	// are cut and marked as truncated.
	PayloadMaxLength int `envconfig:"PAYLOAD_MAX_LENGTH" default:"512"`

	// SampleRatio is the uniform head-based sampling rate in [0,1],
	// drawn once at the root span of each trace.
	SampleRatio float64 `envconfig:"SAMPLE_RATIO" default:"1"`

	// QueueSize bounds the hand-off queue toward the exporter.
	QueueSize int `envconfig:"QUEUE_SIZE" default:"2048"`

	// LegacyPropagation also emits the OpenCensus binary trace
	// context for older consumers.
	LegacyPropagation bool `envconfig:"LEGACY_PROPAGATION" default:"false"`
}

// DefaultConfig returns the configuration used when nothing is
// overridden: tracing on for every kind, payload capture off, sample
// everything.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Commands:         KindConfig{Enabled: true},
		Queries:          KindConfig{Enabled: true},
		Events:           KindConfig{Enabled: true},
		PayloadMaxLength: 512,
		SampleRatio:      1,
		QueueSize:        2048,
	}
}

// ConfigFromEnv loads and validates a Config from TRACING_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("tracing", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration; it reports the first violation
// found.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w: sample ratio %v outside [0,1]", ErrInvalidConfig, c.SampleRatio)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size %d must be positive", ErrInvalidConfig, c.QueueSize)
	}
	if c.CapturePayload && c.PayloadMaxLength <= 0 {
		return fmt.Errorf("%w: payload capture enabled with max length %d", ErrInvalidConfig, c.PayloadMaxLength)
	}
	return nil
}

// kindEnabled reports whether tracing applies to the given kind.
func (c Config) kindEnabled(k Kind) bool {
	if !c.Enabled {
		return false
	}
	switch k {
	case KindCommand:
		return c.Commands.Enabled
	case KindQuery:
		return c.Queries.Enabled
	case KindEvent:
		return c.Events.Enabled
	default:
		return true
	}
}
