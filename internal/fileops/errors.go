package fileops

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/mattjoyce/taskd/internal/protocol"
)

// classify maps an OS error onto the task error taxonomy. The path wrapper
// is stripped from the cause because the message already names the path.
func classify(err error, format string, args ...any) error {
	cause := err
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	switch {
	case errors.As(err, &pathErr):
		cause = pathErr.Err
	case errors.As(err, &linkErr):
		cause = linkErr.Err
	}

	var t protocol.ErrorType
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		t = protocol.TypeNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		t = protocol.TypePermission
	case errors.Is(err, fs.ErrExist):
		t = protocol.TypePathExists
	default:
		t = protocol.TypeIO
	}
	return protocol.Wrap(t, cause, format, args...)
}

// classifyMkdir treats a non-directory in the way of a new directory as a
// conflicting entity rather than a missing one.
func classifyMkdir(err error, path string) error {
	if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
		return protocol.Errorf(protocol.TypePathExists, "cannot create directory %s: a non-directory is in the way", path)
	}
	return classify(err, "create directory %s", path)
}
