package fileops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattjoyce/taskd/internal/protocol"
)

// writeTemp writes data to a fresh temporary file next to path, synced and
// closed, and returns its name. The caller owns removal.
func writeTemp(path string, data []byte, perm fs.FileMode) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".taskd-*")
	if err != nil {
		return "", classify(err, "create temporary file in %s", dir)
	}
	tmp := f.Name()

	fail := func(err error, what string) (string, error) {
		f.Close()
		os.Remove(tmp)
		return "", classify(err, "%s %s", what, tmp)
	}

	if _, err := f.Write(data); err != nil {
		return fail(err, "write")
	}
	if err := f.Chmod(perm); err != nil {
		return fail(err, "chmod")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "sync")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", classify(err, "close %s", tmp)
	}
	return tmp, nil
}

// createExclusive publishes data at path only if nothing exists there. The
// temporary file is hard-linked into place, which fails atomically on an
// existing target and never exposes a partial file.
func (h *Handler) createExclusive(ctx context.Context, path string, data []byte) error {
	tmp, err := writeTemp(path, data, filePerm)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if h.beforeCommit != nil {
		h.beforeCommit(path)
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	err = os.Link(tmp, path)
	switch {
	case err == nil:
		syncDir(filepath.Dir(path))
		return nil
	case errors.Is(err, fs.ErrExist):
		return protocol.Errorf(protocol.TypePathExists, "%s already exists", path)
	}

	h.logger.Debug("hard link unavailable, falling back to exclusive create", "path", path, "error", err)
	return writeExclusive(path, data)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return classify(err, "create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return classify(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return classify(err, "sync %s", path)
	}
	if err := f.Close(); err != nil {
		return classify(err, "close %s", path)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// replaceFile swaps the contents of target for data via write-temp + rename.
// Readers see either the old or the new file, never a mix. Cancellation
// before the rename leaves target untouched.
func (h *Handler) replaceFile(ctx context.Context, target string, data []byte, perm fs.FileMode) error {
	tmp, err := writeTemp(target, data, perm)
	if err != nil {
		return err
	}

	if h.beforeCommit != nil {
		h.beforeCommit(target)
	}
	if err := checkCancelled(ctx); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return classify(err, "rename into %s", target)
	}
	syncDir(filepath.Dir(target))
	return nil
}

// syncDir makes a rename or link durable. Failure is ignored: the data is
// already visible and some filesystems refuse directory fsync.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
