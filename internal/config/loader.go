package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/bundlehost/internal/instance"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Values start at
// Defaults() and the file overrides them; ${VAR} placeholders are
// interpolated from the environment before parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Defaults()
	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR}
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	// Service validation
	if cfg.Service.TickInterval <= 0 {
		return fmt.Errorf("service.tick_interval must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	// Storage validation
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	// Executor and sweep bounds
	if cfg.Executor.Timeout <= 0 {
		return fmt.Errorf("executor.timeout must be positive")
	}
	if cfg.Sweep.PageSize < 1 || cfg.Sweep.PageSize > instance.MaxPageSize {
		return fmt.Errorf("sweep.page_size must be between 1 and %d (got %d)", instance.MaxPageSize, cfg.Sweep.PageSize)
	}
	if cfg.Fanout.ShutdownTimeout <= 0 {
		return fmt.Errorf("fanout.shutdown_timeout must be positive")
	}

	// API auth validation
	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api.enabled is true")
		}
		if cfg.API.Auth.APIKey == "" {
			return fmt.Errorf("api.auth.api_key is required when api.enabled is true")
		}
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
			if len(matches) > 1 {
				return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
			}
			return fmt.Errorf("api.auth.api_key: unresolved environment variable")
		}
	}

	// Webhook validation
	seen := make(map[string]bool, len(cfg.Webhooks))
	for i, hook := range cfg.Webhooks {
		if hook.ID == "" {
			return fmt.Errorf("webhooks[%d].id is required", i)
		}
		if seen[hook.ID] {
			return fmt.Errorf("webhooks[%d]: duplicate id %q", i, hook.ID)
		}
		seen[hook.ID] = true
		if hook.Secret == "" {
			return fmt.Errorf("webhooks[%d] (%s): secret is required", i, hook.ID)
		}
		if envVarPattern.MatchString(hook.Secret) {
			matches := envVarPattern.FindStringSubmatch(hook.Secret)
			if len(matches) > 1 {
				return fmt.Errorf("webhooks[%d] (%s): environment variable ${%s} is not set", i, hook.ID, matches[1])
			}
			return fmt.Errorf("webhooks[%d] (%s): unresolved environment variable in secret", i, hook.ID)
		}
		if hook.MaxBodyBytes < 0 {
			return fmt.Errorf("webhooks[%d] (%s): max_body_bytes must not be negative", i, hook.ID)
		}
	}

	return nil
}
