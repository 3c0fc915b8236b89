package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig configures the ledger CLI and its tiered client.
//
// Values come from an optional YAML file, then environment variables,
// then defaults. Environment variables win over the file.
type ClientConfig struct {
	// BackendURL is the API server probed first.
	BackendURL string `yaml:"backend_url" env:"LEDGER_BACKEND_URL"`

	// FallbackURL is probed when BackendURL is unset or unreachable.
	FallbackURL string `yaml:"fallback_url" env:"LEDGER_FALLBACK_URL" default:"http://localhost:3000"`

	// DatasetURL and DatasetPath locate the bundled read-only dataset.
	// The URL is tried first.
	DatasetURL  string `yaml:"dataset_url" env:"LEDGER_DATASET_URL"`
	DatasetPath string `yaml:"dataset_path" env:"LEDGER_DATASET_PATH"`

	// StorageDir holds locally persisted records.
	StorageDir    string `yaml:"storage_dir" env:"LEDGER_STORAGE_DIR" default:".ledger"`
	StoragePrefix string `yaml:"storage_prefix" env:"LEDGER_STORAGE_PREFIX" default:"ledger."`

	// ProbeTimeout bounds the one-shot backend health probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"LEDGER_PROBE_TIMEOUT" default:"2s"`

	// RequestTimeout bounds every live-tier request after the probe.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LEDGER_REQUEST_TIMEOUT" default:"10s"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoadClient reads the client configuration. path may be empty.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config load: parse %s: %w", path, err)
		}
	}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that the client configuration is usable.
func (c *ClientConfig) Validate() error {
	var errs []string

	urls := []struct{ env, value string }{
		{"LEDGER_BACKEND_URL", c.BackendURL},
		{"LEDGER_FALLBACK_URL", c.FallbackURL},
		{"LEDGER_DATASET_URL", c.DatasetURL},
	}
	for _, u := range urls {
		if u.value != "" && !strings.HasPrefix(u.value, "http://") && !strings.HasPrefix(u.value, "https://") {
			errs = append(errs, fmt.Sprintf("%s (%q) must be an http(s) URL", u.env, u.value))
		}
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, "LEDGER_PROBE_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, "LEDGER_REQUEST_TIMEOUT must be positive")
	}
	if c.StorageDir == "" {
		errs = append(errs, "LEDGER_STORAGE_DIR is required")
	}
	errs = append(errs, validateLogging(c.Logging)...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
