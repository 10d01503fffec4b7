package config

import "time"

// Config represents the complete taskd configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Executor ExecutorConfig `yaml:"executor"`
	Journal  JournalConfig  `yaml:"journal"`
	API      APIConfig      `yaml:"api,omitempty"`

	// SourcePath is the absolute path the config was loaded from. Empty for
	// Defaults().
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// ExecutorConfig controls how tasks touch the host.
type ExecutorConfig struct {
	// WorkDir resolves relative file paths and is the default working
	// directory for commands. Empty means the process working directory.
	WorkDir        string        `yaml:"workdir"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	GracePeriod    time.Duration `yaml:"grace_period"`
	MaxStderrBytes int           `yaml:"max_stderr_bytes"`
	MaxConcurrent  int           `yaml:"max_concurrent"`

	// AllowedCommands restricts command/run to these names or absolute
	// executable paths. Empty allows any command.
	AllowedCommands []string `yaml:"allowed_commands,omitempty"`

	// InheritEnvironment passes the engine's own environment to children.
	// Environment is layered on top, and the request overlay on top of that.
	InheritEnvironment bool              `yaml:"inherit_environment"`
	Environment        map[string]string `yaml:"environment,omitempty"`
}

// JournalConfig defines the optional task journal.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Listen     string        `yaml:"listen"`
	MaxTimeout time.Duration `yaml:"max_timeout"`
	Auth       APIAuthConfig `yaml:"auth"`
	// AllowedOrigins enables CORS for browser clients on these origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the bearer token.
	APIKey string `yaml:"api_key"`
	// HMACSecret admits requests whose body is signed with it.
	HMACSecret string `yaml:"hmac_secret"`
}

// ChecksumManifest is the on-disk .checksums format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "taskd",
			LogLevel: "info",
		},
		Executor: ExecutorConfig{
			WorkDir:            "",
			DefaultTimeout:     0,
			GracePeriod:        5 * time.Second,
			MaxStderrBytes:     64 * 1024,
			MaxConcurrent:      8,
			InheritEnvironment: true,
			Environment:        make(map[string]string),
		},
		Journal: JournalConfig{
			Enabled:   false,
			Path:      "./data/taskd.db",
			Retention: 30 * 24 * time.Hour,
		},
		API: APIConfig{
			Enabled:    false,
			Listen:     "127.0.0.1:8080",
			MaxTimeout: 10 * time.Minute,
			Auth: APIAuthConfig{
				APIKey: "",
			},
		},
	}
}
