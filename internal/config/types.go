package config

import "time"

// Config represents the complete bundlehost configuration.
type Config struct {
	Service    ServiceConfig   `yaml:"service"`
	Storage    StorageConfig   `yaml:"storage"`
	BundlesDir string          `yaml:"bundles_dir,omitempty"`
	API        APIConfig       `yaml:"api,omitempty"`
	Executor   ExecutorConfig  `yaml:"executor,omitempty"`
	Sweep      SweepConfig     `yaml:"sweep,omitempty"`
	Fanout     FanoutConfig    `yaml:"fanout,omitempty"`
	Webhooks   []WebhookConfig `yaml:"webhooks,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
}

// StorageConfig defines instance storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// ExecutorConfig bounds bundle invocations.
type ExecutorConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SweepConfig controls batch paging.
type SweepConfig struct {
	PageSize int `yaml:"page_size"`
}

// FanoutConfig controls the notification registry.
type FanoutConfig struct {
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// WebhookConfig defines one inbound webhook source.
type WebhookConfig struct {
	ID              string `yaml:"id"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes,omitempty"`
}

// ChecksumManifest is the parsed .checksums file.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "bundlehost",
			TickInterval: 60 * time.Second,
			LogLevel:     "info",
			LogFormat:    "json",
		},
		Storage: StorageConfig{
			Path: "./data/instances.db",
		},
		BundlesDir: "./bundles",
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
			Auth: APIAuthConfig{
				APIKey: "",
			},
		},
		Executor: ExecutorConfig{
			Timeout: 60 * time.Second,
		},
		Sweep: SweepConfig{
			PageSize: 1000,
		},
		Fanout: FanoutConfig{
			ShutdownTimeout: 30 * time.Second,
		},
	}
}
