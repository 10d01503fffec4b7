package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	workDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file uses defaults",
			yaml: "",
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "taskd" {
					t.Errorf("service.name = %q, want taskd", cfg.Service.Name)
				}
				if cfg.Executor.GracePeriod != 5*time.Second {
					t.Errorf("grace_period = %v, want 5s", cfg.Executor.GracePeriod)
				}
				if cfg.Executor.MaxStderrBytes != 64*1024 {
					t.Errorf("max_stderr_bytes = %d", cfg.Executor.MaxStderrBytes)
				}
				if !cfg.Executor.InheritEnvironment {
					t.Error("inherit_environment should default to true")
				}
				if cfg.Journal.Enabled || cfg.API.Enabled {
					t.Error("journal and api should be disabled by default")
				}
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: edge-1
  log_level: debug
executor:
  workdir: ` + workDir + `
  default_timeout: 30s
  grace_period: 2s
  max_stderr_bytes: 1024
  max_concurrent: 4
  inherit_environment: false
  environment:
    LANG: C.UTF-8
journal:
  enabled: true
  path: ./journal.db
  retention: 168h
api:
  enabled: true
  listen: 127.0.0.1:9090
  max_timeout: 1m
  auth:
    api_key: secret
    hmac_secret: hook
  allowed_origins:
    - https://ui.example
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "edge-1" || cfg.Service.LogLevel != "debug" {
					t.Errorf("service not parsed: %+v", cfg.Service)
				}
				ex := cfg.Executor
				if ex.WorkDir != workDir || ex.DefaultTimeout != 30*time.Second || ex.GracePeriod != 2*time.Second {
					t.Errorf("executor not parsed: %+v", ex)
				}
				if ex.MaxStderrBytes != 1024 || ex.MaxConcurrent != 4 || ex.InheritEnvironment {
					t.Errorf("executor limits not parsed: %+v", ex)
				}
				if ex.Environment["LANG"] != "C.UTF-8" {
					t.Errorf("executor.environment not parsed: %v", ex.Environment)
				}
				if !cfg.Journal.Enabled || cfg.Journal.Retention != 168*time.Hour {
					t.Errorf("journal not parsed: %+v", cfg.Journal)
				}
				if cfg.API.Listen != "127.0.0.1:9090" || cfg.API.MaxTimeout != time.Minute || cfg.API.Auth.APIKey != "secret" {
					t.Errorf("api not parsed: %+v", cfg.API)
				}
				if cfg.API.Auth.HMACSecret != "hook" {
					t.Errorf("api.auth.hmac_secret = %q", cfg.API.Auth.HMACSecret)
				}
				if len(cfg.API.AllowedOrigins) != 1 || cfg.API.AllowedOrigins[0] != "https://ui.example" {
					t.Errorf("api.allowed_origins = %v", cfg.API.AllowedOrigins)
				}
			},
		},
		{
			name: "env interpolation",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${TASKD_TEST_KEY}
`,
			env: map[string]string{"TASKD_TEST_KEY": "from-env"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.Auth.APIKey != "from-env" {
					t.Errorf("api_key = %q, want from-env", cfg.API.Auth.APIKey)
				}
			},
		},
		{
			name: "unset env var in api key",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${TASKD_TEST_UNSET_KEY}
`,
			wantErr: "TASKD_TEST_UNSET_KEY",
		},
		{
			name:    "unknown key",
			yaml:    "plugins_dir: ./plugins\n",
			wantErr: "field plugins_dir not found",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: verbose\n",
			wantErr: "service.log_level",
		},
		{
			name:    "zero grace period",
			yaml:    "executor:\n  grace_period: 0s\n",
			wantErr: "grace_period",
		},
		{
			name:    "negative timeout",
			yaml:    "executor:\n  default_timeout: -1s\n",
			wantErr: "default_timeout",
		},
		{
			name:    "missing workdir",
			yaml:    "executor:\n  workdir: " + filepath.Join(workDir, "missing") + "\n",
			wantErr: "executor.workdir",
		},
		{
			name:    "bad env name",
			yaml:    "executor:\n  environment:\n    \"A=B\": x\n",
			wantErr: "invalid variable name",
		},
		{
			name:    "empty allowed origin",
			yaml:    "api:\n  enabled: true\n  allowed_origins: [\"\"]\n",
			wantErr: "api.allowed_origins[0]",
		},
		{
			name:    "malformed yaml",
			yaml:    "service: [\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeConfig(t, t.TempDir(), tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if cfg.SourcePath != path {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, path)
			}
			tt.checkFn(t, cfg)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "service:\n  name: from-dir\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) failed: %v", err)
	}
	if cfg.Service.Name != "from-dir" {
		t.Errorf("service.name = %q", cfg.Service.Name)
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load() of a directory without config.yaml should fail")
	}
}

func TestInterpolateEnvLeavesUnknown(t *testing.T) {
	t.Setenv("TASKD_KNOWN", "yes")
	got := interpolateEnv("${TASKD_KNOWN}-${TASKD_NOT_SET_ANYWHERE}-$PLAIN")
	if got != "yes-${TASKD_NOT_SET_ANYWHERE}-$PLAIN" {
		t.Errorf("interpolateEnv() = %q", got)
	}
}

func TestChildEnvironment(t *testing.T) {
	t.Setenv("TASKD_INHERITED", "1")

	cfg := Defaults()
	cfg.Executor.Environment = map[string]string{"B": "2", "A": "1"}

	env := cfg.ChildEnvironment()
	if !contains(env, "TASKD_INHERITED=1") {
		t.Error("inherited variable missing")
	}
	if env[len(env)-2] != "A=1" || env[len(env)-1] != "B=2" {
		t.Errorf("configured variables should come last and sorted, got %v", env[len(env)-2:])
	}

	cfg.Executor.InheritEnvironment = false
	env = cfg.ChildEnvironment()
	if len(env) != 2 {
		t.Errorf("ChildEnvironment() without inheritance = %v", env)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRequireAPI(t *testing.T) {
	// Disabled API sections skip validation at load time.
	cfg, err := Parse([]byte(`
api:
  listen: 0.0.0.0:8080
  auth:
    api_key: ${TASKD_TEST_UNSET_KEY}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	err = cfg.RequireAPI()
	if err == nil || !strings.Contains(err.Error(), "api.enabled is false") {
		t.Fatalf("RequireAPI() on disabled API = %v, want api.enabled error", err)
	}

	cfg.API.Enabled = true
	err = cfg.RequireAPI()
	if err == nil || !strings.Contains(err.Error(), "TASKD_TEST_UNSET_KEY") {
		t.Fatalf("RequireAPI() with placeholder key = %v, want unresolved error", err)
	}

	cfg.API.Auth.APIKey = "secret"
	if err := cfg.RequireAPI(); err != nil {
		t.Fatalf("RequireAPI() on valid API = %v", err)
	}
}

func TestAllowedCommands(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(writeConfig(t, dir, "executor:\n  allowed_commands: [git, /usr/bin/python3]\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !contains(cfg.Executor.AllowedCommands, "git") || !contains(cfg.Executor.AllowedCommands, "/usr/bin/python3") {
		t.Fatalf("AllowedCommands = %v", cfg.Executor.AllowedCommands)
	}

	_, err = Load(writeConfig(t, dir, "executor:\n  allowed_commands: [git, \" \"]\n"))
	if err == nil || !strings.Contains(err.Error(), "executor.allowed_commands[1]") {
		t.Fatalf("Load() with blank entry error = %v", err)
	}
}
