package cache

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/cacheproxy/observe"
)

// Config is the environment form of the Wrap parameters.
type Config struct {
	// Dir is the file tier directory. $VAR references are expanded.
	Dir string `env:"CACHEPROXY_DIR,required,expand"`

	// Name labels the wrapped object in telemetry.
	Name string `env:"CACHEPROXY_NAME"`

	// PolicyFile is an optional YAML policy document.
	PolicyFile string `env:"CACHEPROXY_POLICY_FILE,expand"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"CACHEPROXY_LOG_LEVEL" envDefault:"info"`

	// ScanWorkers bounds parallel decoding during the startup scan.
	ScanWorkers int `env:"CACHEPROXY_SCAN_WORKERS" envDefault:"8"`
}

// LoadConfigFromEnv reads Config from the environment and validates it.
func LoadConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values. Directory existence is checked by Wrap.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: dir is required", ErrInvalidConfig)
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("%w: scan workers must be positive, got %d", ErrInvalidConfig, c.ScanWorkers)
	}
	if !observe.IsLogLevel(c.LogLevel) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, observe.ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Options converts c into Wrap options. The logger writes JSON to stderr.
func (c Config) Options() []Option {
	opts := []Option{
		WithScanWorkers(c.ScanWorkers),
		WithLogger(observe.NewLogger(c.LogLevel)),
	}
	if c.Name != "" {
		opts = append(opts, WithName(c.Name))
	}
	if c.PolicyFile != "" {
		opts = append(opts, WithPolicyFile(c.PolicyFile))
	}
	return opts
}

// WrapWithConfig validates cfg and wraps obj with it. opts are applied after
// the options derived from cfg.
func WrapWithConfig(obj Object, cfg Config, opts ...Option) (*Proxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Wrap(obj, cfg.Dir, append(cfg.Options(), opts...)...)
}
