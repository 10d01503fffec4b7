package doctor

import (
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/taskd/internal/config"
)

func validReport(t *testing.T) *config.CheckReport {
	t.Helper()
	cfg := config.Defaults()
	cfg.Executor.WorkDir = t.TempDir()
	cfg.Executor.DefaultTimeout = time.Minute
	cfg.Executor.AllowedCommands = []string{"git"}
	return &config.CheckReport{ConfigPath: "/etc/taskd/config.yaml", Locked: true, Config: cfg}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validReport(t)).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
	if !r.Locked {
		t.Fatal("expected locked to be reported")
	}
}

func TestValidate_UnsetWorkDir(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.Executor.WorkDir = ""
	r := New(report).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "executor", "process working directory")
}

func TestValidate_APIWithoutAuth(t *testing.T) {
	t.Parallel()

	report := validReport(t)
	report.Config.API.Enabled = true
	report.Config.API.Listen = "127.0.0.1:8080"
	r := New(report).Validate()
	if !r.Valid {
		t.Fatalf("loopback without auth should only warn, got: %v", r.Errors)
	}
	assertHasWarning(t, r, "api", "without authentication")

	report.Config.API.Listen = "0.0.0.0:8080"
	r = New(report).Validate()
	if r.Valid {
		t.Fatal("expected non-loopback listener without auth to be invalid")
	}
	assertHasError(t, r, "api", "non-loopback")

	report.Config.API.Auth.APIKey = "secret"
	r = New(report).Validate()
	if !r.Valid {
		t.Fatalf("expected valid with api key, got: %v", r.Errors)
	}
}

func TestServeErrors(t *testing.T) {
	t.Parallel()

	cfg := validReport(t).Config
	cfg.API.Enabled = true
	cfg.API.Listen = "0.0.0.0:8080"
	issues := ServeErrors(cfg)
	if len(issues) != 1 || issues[0].Field != "api.auth.api_key" {
		t.Fatalf("ServeErrors() = %v, want one api.auth.api_key issue", issues)
	}

	cfg.API.Listen = "127.0.0.1:8080"
	if issues := ServeErrors(cfg); len(issues) != 0 {
		t.Fatalf("loopback without auth is a warning, got errors %v", issues)
	}

	cfg.API.Listen = "0.0.0.0:8080"
	cfg.API.Auth.APIKey = "secret"
	if issues := ServeErrors(cfg); len(issues) != 0 {
		t.Fatalf("ServeErrors() with auth = %v", issues)
	}
}

func TestValidate_APIWithHMACOnly(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.API.Enabled = true
	report.Config.API.Listen = "0.0.0.0:8080"
	report.Config.API.Auth.HMACSecret = "hook"
	r := New(report).Validate()
	if !r.Valid {
		t.Fatalf("expected signed-only API to be valid, got: %v", r.Errors)
	}
}

func TestValidate_APIBadListen(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.API.Enabled = true
	report.Config.API.Listen = "8080"
	r := New(report).Validate()
	assertHasError(t, r, "api", "invalid listen address")
}

func TestValidate_APIMaxTimeoutShorterThanDefault(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.API.Enabled = true
	report.Config.API.Auth.APIKey = "secret"
	report.Config.API.MaxTimeout = 10 * time.Second
	r := New(report).Validate()
	assertHasWarning(t, r, "api", "shorter than executor.default_timeout")
}

func TestValidate_NoInheritedPath(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.Executor.InheritEnvironment = false
	r := New(report).Validate()
	assertHasWarning(t, r, "executor", "PATH is not configured")

	report.Config.Executor.Environment = map[string]string{"PATH": "/usr/bin:/bin"}
	r = New(report).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings with PATH configured, got: %v", r.Warnings)
	}
}

func TestValidate_NoDefaultTimeout(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.Executor.DefaultTimeout = 0
	r := New(report).Validate()
	assertHasWarning(t, r, "executor", "no default timeout")
}

func TestValidate_JournalRetention(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.Journal.Enabled = true
	report.Config.Journal.Path = t.TempDir() + "/journal.db"
	report.Config.Journal.Retention = 0
	r := New(report).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got: %v", r.Errors)
	}
	assertHasWarning(t, r, "journal", "without bound")
}

func TestValidate_AnyCommandAllowed(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Config.Executor.AllowedCommands = nil
	r := New(report).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "executor", "any program")
}

func TestValidate_Unlocked(t *testing.T) {
	t.Parallel()
	report := validReport(t)
	report.Locked = false
	r := New(report).Validate()
	assertHasWarning(t, r, "integrity", "taskd config lock")
}

func TestLoopback(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:8080":     true,
		"localhost:80":   true,
		"0.0.0.0:8080":   false,
		":8080":          false,
		"10.0.0.4:8080":  false,
		"bogus":          false,
	}
	for listen, want := range cases {
		if got := loopback(listen); got != want {
			t.Errorf("loopback(%q) = %v, want %v", listen, got, want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:  false,
		Errors: []Issue{{Category: "test", Message: "bad thing"}},
	}
	out, err := FormatJSON(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bad thing") {
		t.Fatalf("expected JSON to contain error message, got: %s", out)
	}
}

func TestFormatHuman_Valid(t *testing.T) {
	t.Parallel()
	out := FormatHuman(&Result{Valid: true})
	if out != "Configuration valid.\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFormatHuman_WarningsAndErrors(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "test", Field: "x.y", Message: "broken"}},
		Warnings: []Issue{{Category: "integrity", Message: "unlocked"}},
	}
	out := FormatHuman(r)
	if !strings.Contains(out, "ERROR [test] x.y: broken") {
		t.Fatalf("expected error in output, got: %s", out)
	}
	if !strings.Contains(out, "WARN  [integrity] unlocked") {
		t.Fatalf("expected warning in output, got: %s", out)
	}
	if !strings.Contains(out, "1 error(s), 1 warning(s)") {
		t.Fatalf("expected summary in output, got: %s", out)
	}
}

// --- helpers ---

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
