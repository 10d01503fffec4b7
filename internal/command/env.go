package command

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/mattjoyce/taskd/internal/protocol"
)

// mergeEnv overlays the request environment on base. Overlay keys win and the
// result is sorted so children see a deterministic environment.
func mergeEnv(base []string, overlay map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func lookupEnv(env []string, key string) string {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// resolveExecutable finds command the way the child would: names containing
// a separator are taken relative to dir, bare names are searched in the
// child's own PATH.
func resolveExecutable(command, dir, pathEnv string) (string, error) {
	if strings.ContainsRune(command, '/') || strings.ContainsRune(command, filepath.Separator) {
		path := command
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := checkExecutable(path); err != nil {
			return "", classifyLookup(command, err)
		}
		return path, nil
	}

	var firstErr error
	for _, entry := range filepath.SplitList(pathEnv) {
		if entry == "" {
			entry = "."
		}
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(dir, entry)
		}
		path := filepath.Join(entry, command)
		err := checkExecutable(path)
		if err == nil {
			return path, nil
		}
		if firstErr == nil && !errors.Is(err, fs.ErrNotExist) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", classifyLookup(command, firstErr)
	}
	return "", protocol.Errorf(protocol.TypeNotFound, "executable %q not found in PATH", command)
}

var errNotExecutable = errors.New("not an executable file")

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fs.ErrNotExist
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return errNotExecutable
	}
	return nil
}

func classifyLookup(command string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return protocol.Errorf(protocol.TypeNotFound, "executable %q not found", command)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, errNotExecutable):
		return protocol.Errorf(protocol.TypePermission, "executable %q is not executable", command)
	default:
		return protocol.Wrap(protocol.TypeIO, err, "resolve executable %q", command)
	}
}
