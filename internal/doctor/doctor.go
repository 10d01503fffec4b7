// Package doctor reviews a loaded taskd configuration for settings that are
// legal but likely to surprise an operator.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/mattjoyce/taskd/internal/config"
	"github.com/mattjoyce/taskd/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Locked   bool    `json:"locked"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor reviews a configuration that already passed config.Load.
type Doctor struct {
	cfg    *config.Config
	locked bool
}

// New creates a Doctor from a config check report.
func New(report *config.CheckReport) *Doctor {
	return &Doctor{cfg: report.Config, locked: report.Locked}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true, Locked: d.locked}

	d.validateWorkDir(r)
	d.validateJournal(r)
	d.validateAPI(r)
	d.warnCommandLookup(r)
	d.warnUnboundedCommands(r)
	d.warnAnyCommand(r)
	d.warnUnlocked(r)

	r.Valid = len(r.Errors) == 0
	return r
}

// ServeErrors returns the findings that must stop cfg from serving HTTP.
// Callers check config.RequireAPI first.
func ServeErrors(cfg *config.Config) []Issue {
	d := &Doctor{cfg: cfg}
	r := &Result{}
	d.validateAPI(r)
	return r.Errors
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateWorkDir checks the executor can write where relative paths land.
func (d *Doctor) validateWorkDir(r *Result) {
	dir := d.cfg.Executor.WorkDir
	if dir == "" {
		d.addWarning(r, "executor", "executor.workdir",
			"not set; relative paths resolve against the process working directory")
		return
	}
	tmp, err := os.CreateTemp(dir, ".taskd-doctor-*")
	if err != nil {
		d.addError(r, "executor", "executor.workdir", fmt.Sprintf("not writable: %v", err))
		return
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
}

func (d *Doctor) validateJournal(r *Result) {
	j := d.cfg.Journal
	if !j.Enabled {
		return
	}
	if err := storage.ValidateFilesystem(j.Path); err != nil {
		d.addError(r, "journal", "journal.path", err.Error())
	}
	if j.Retention == 0 {
		d.addWarning(r, "journal", "journal.retention", "retention is 0; the journal grows without bound")
	}
}

func (d *Doctor) validateAPI(r *Result) {
	api := d.cfg.API
	if !api.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(api.Listen); err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", api.Listen, err))
		return
	}
	if api.Auth.APIKey == "" && api.Auth.HMACSecret == "" {
		if loopback(api.Listen) {
			d.addWarning(r, "api", "api.auth.api_key", "API enabled without authentication")
		} else {
			d.addError(r, "api", "api.auth.api_key",
				fmt.Sprintf("API listens on non-loopback address %q without authentication", api.Listen))
		}
	}
	ex := d.cfg.Executor
	if ex.DefaultTimeout > 0 && api.MaxTimeout < ex.DefaultTimeout {
		d.addWarning(r, "api", "api.max_timeout",
			fmt.Sprintf("max_timeout %s is shorter than executor.default_timeout %s", api.MaxTimeout, ex.DefaultTimeout))
	}
}

// warnCommandLookup flags configs where bare command names cannot resolve.
func (d *Doctor) warnCommandLookup(r *Result) {
	ex := d.cfg.Executor
	if ex.InheritEnvironment {
		return
	}
	if _, ok := ex.Environment["PATH"]; !ok {
		d.addWarning(r, "executor", "executor.environment.PATH",
			"inherit_environment is false and PATH is not configured; commands must be given as paths")
	}
}

func (d *Doctor) warnUnboundedCommands(r *Result) {
	if d.cfg.Executor.DefaultTimeout == 0 {
		d.addWarning(r, "executor", "executor.default_timeout",
			"no default timeout; commands run until they exit unless the caller sets a deadline")
	}
}

func (d *Doctor) warnAnyCommand(r *Result) {
	if len(d.cfg.Executor.AllowedCommands) == 0 {
		d.addWarning(r, "executor", "executor.allowed_commands",
			"not set; command/run may execute any program the service user can reach")
	}
}

func (d *Doctor) warnUnlocked(r *Result) {
	if !d.locked {
		d.addWarning(r, "integrity", "", "no .checksums manifest; run 'taskd config lock' to pin this config")
	}
}

func loopback(listen string) bool {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
