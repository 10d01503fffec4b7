package fileops

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/task"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Handler performs file/* operations against the local filesystem.
type Handler struct {
	baseDir string
	logger  *slog.Logger

	// beforeCommit runs after the temporary file is written and before it is
	// linked or renamed into place.
	beforeCommit func(path string)
}

// New creates a Handler. Relative task paths resolve against baseDir; an
// empty baseDir means the process working directory.
func New(baseDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		baseDir: filepath.Clean(strings.TrimSpace(baseDir)),
		logger:  logger,
	}
}

// Create makes a directory (no content) or a new file. It never overwrites:
// an existing target is PATH_EXISTS_ERROR unless it is an empty directory
// and no content was requested.
func (h *Handler) Create(ctx context.Context, op task.FileCreate) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	path := h.resolve(op.Path)

	if op.Content == nil {
		return h.createDir(path)
	}

	data, err := op.Content.Bytes()
	if err != nil {
		return err
	}

	if _, err := os.Lstat(path); err == nil {
		return protocol.Errorf(protocol.TypePathExists, "%s already exists", path)
	} else if !missing(err) {
		return classify(err, "stat %s", path)
	}

	if err := mkdirParents(path); err != nil {
		return err
	}

	if err := h.createExclusive(ctx, path, data); err != nil {
		return err
	}
	h.logger.Debug("file created", "path", path, "bytes", len(data))
	return nil
}

func (h *Handler) createDir(path string) error {
	info, err := os.Lstat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return protocol.Errorf(protocol.TypePathExists, "%s already exists", path)
		}
		empty, err := isEmptyDir(path)
		if err != nil {
			return classify(err, "read directory %s", path)
		}
		if !empty {
			return protocol.Errorf(protocol.TypePathExists, "directory %s already exists and is not empty", path)
		}
		h.logger.Debug("directory already exists and is empty", "path", path)
		return nil
	case !missing(err):
		return classify(err, "stat %s", path)
	}

	if err := os.MkdirAll(path, dirPerm); err != nil {
		return classifyMkdir(err, path)
	}
	h.logger.Debug("directory created", "path", path)
	return nil
}

// Edit replaces the contents of an existing regular file atomically. If
// path is a symlink the link is kept and its target is replaced.
func (h *Handler) Edit(ctx context.Context, op task.FileEdit) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	path := h.resolve(op.Path)

	data, err := op.Content.Bytes()
	if err != nil {
		return err
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return classify(err, "resolve %s", path)
	}
	info, err := os.Stat(target)
	if err != nil {
		return classify(err, "stat %s", path)
	}
	if info.IsDir() {
		return protocol.Errorf(protocol.TypePathExists, "%s is a directory", path)
	}
	if !info.Mode().IsRegular() {
		return protocol.Errorf(protocol.TypePathExists, "%s is not a regular file", path)
	}

	if err := h.replaceFile(ctx, target, data, info.Mode().Perm()); err != nil {
		return err
	}
	h.logger.Debug("file replaced", "path", path, "bytes", len(data))
	return nil
}

// Delete removes a file, symlink or directory tree.
func (h *Handler) Delete(ctx context.Context, op task.FileDelete) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	path := h.resolve(op.Path)

	info, err := os.Lstat(path)
	if err != nil {
		return classify(err, "stat %s", path)
	}

	if err := os.RemoveAll(path); err != nil {
		return classify(err, "remove %s", path)
	}
	h.logger.Debug("path deleted", "path", path, "dir", info.IsDir())
	return nil
}

func (h *Handler) resolve(path string) string {
	if filepath.IsAbs(path) || h.baseDir == "." || h.baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(h.baseDir, path)
}

func mkdirParents(path string) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return classifyMkdir(err, parent)
	}
	return nil
}

func isEmptyDir(path string) (bool, error) {
	dir, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer dir.Close()

	_, err = dir.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// missing reports whether err means nothing exists at the path yet. ENOTDIR
// counts: the non-directory ancestor is reported when parents are created.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// checkCancelled aborts on cancellation only. File operations are not bound
// by caller deadlines, so an expired deadline is ignored here.
func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return protocol.Wrap(protocol.TypeCancelled, err, "file operation cancelled")
	}
	return nil
}
