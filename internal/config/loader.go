package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates the configuration at configPath. A
// directory is accepted and means <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := ResolvePath(configPath)
	if err != nil {
		return nil, err
	}

	if err := VerifyLocked(absPath); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolvePath returns the absolute config file path for configPath.
func ResolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// DiscoverConfigPath finds the config by checking standard locations.
// Priority order: $TASKD_CONFIG, ~/.config/taskd, /etc/taskd, ./config.yaml.
// It returns "" when nothing is found; callers then run on Defaults().
func DiscoverConfigPath() string {
	if p := os.Getenv("TASKD_CONFIG"); p != "" {
		return p
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "taskd", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig
		}
	}

	systemConfig := "/etc/taskd/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig
	}

	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml"
	}
	return ""
}

// loadConfigFile parses path on top of Defaults().
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data over Defaults(). Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolated)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.Executor.Environment == nil {
		cfg.Executor.Environment = make(map[string]string)
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	ex := cfg.Executor
	if ex.DefaultTimeout < 0 {
		return fmt.Errorf("executor.default_timeout must not be negative")
	}
	if ex.GracePeriod <= 0 {
		return fmt.Errorf("executor.grace_period must be positive")
	}
	if ex.MaxStderrBytes <= 0 {
		return fmt.Errorf("executor.max_stderr_bytes must be positive")
	}
	if ex.MaxConcurrent <= 0 {
		return fmt.Errorf("executor.max_concurrent must be positive")
	}
	if ex.WorkDir != "" {
		info, err := os.Stat(ex.WorkDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("executor.workdir %q is not a directory", ex.WorkDir)
		}
	}
	names := make([]string, 0, len(ex.Environment))
	for name := range ex.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" || strings.ContainsAny(name, "=\x00") {
			return fmt.Errorf("executor.environment: invalid variable name %q", name)
		}
		if err := unresolved("executor.environment."+name, ex.Environment[name]); err != nil {
			return err
		}
	}

	for i, name := range ex.AllowedCommands {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("executor.allowed_commands[%d] is empty", i)
		}
	}

	if cfg.Journal.Enabled {
		if cfg.Journal.Path == "" {
			return fmt.Errorf("journal.path is required when the journal is enabled")
		}
		if cfg.Journal.Retention < 0 {
			return fmt.Errorf("journal.retention must not be negative")
		}
	}

	if cfg.API.Enabled {
		if err := validateAPI(cfg.API); err != nil {
			return err
		}
	}

	return nil
}

// RequireAPI reports whether c can back the HTTP transport. It applies the
// API checks even when Load skipped them because api.enabled is false.
func (c *Config) RequireAPI() error {
	if !c.API.Enabled {
		return fmt.Errorf("api.enabled is false; set it to true to serve HTTP")
	}
	return validateAPI(c.API)
}

func validateAPI(api APIConfig) error {
	if api.Listen == "" {
		return fmt.Errorf("api.listen is required when the API is enabled")
	}
	if api.MaxTimeout <= 0 {
		return fmt.Errorf("api.max_timeout must be positive")
	}
	if err := unresolved("api.auth.api_key", api.Auth.APIKey); err != nil {
		return err
	}
	if err := unresolved("api.auth.hmac_secret", api.Auth.HMACSecret); err != nil {
		return err
	}
	for i, origin := range api.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("api.allowed_origins[%d] is empty", i)
		}
	}
	return nil
}

// unresolved rejects values that still contain a ${VAR} placeholder so
// secrets never run with a literal placeholder.
func unresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// ChildEnvironment builds the base environment handed to every command.
func (c *Config) ChildEnvironment() []string {
	var env []string
	if c.Executor.InheritEnvironment {
		env = append(env, os.Environ()...)
	}
	names := make([]string, 0, len(c.Executor.Environment))
	for name := range c.Executor.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, name+"="+c.Executor.Environment[name])
	}
	return env
}
