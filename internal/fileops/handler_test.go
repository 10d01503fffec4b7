package fileops

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/taskd/internal/protocol"
	"github.com/mattjoyce/taskd/internal/task"
	"github.com/mattjoyce/taskd/internal/textenc"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, slog.New(slog.NewJSONHandler(io.Discard, nil))), root
}

func content(t *testing.T, encoding, value string) task.Content {
	t.Helper()
	codec, err := textenc.Lookup(encoding)
	require.NoError(t, err)
	return task.Content{Codec: codec, Value: value}
}

func contentPtr(t *testing.T, encoding, value string) *task.Content {
	c := content(t, encoding, value)
	return &c
}

func requireType(t *testing.T, want protocol.ErrorType, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, protocol.TypeOf(err), "error: %v", err)
}

func TestCreateDirectory(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "a", "b", "demo")

	require.NoError(t, h.Create(context.Background(), task.FileCreate{Path: path}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateDirectoryExisting(t *testing.T) {
	h, root := newTestHandler(t)
	ctx := context.Background()

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	assert.NoError(t, h.Create(ctx, task.FileCreate{Path: empty}), "empty directory is a no-op")

	full := filepath.Join(root, "full")
	require.NoError(t, os.Mkdir(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "x"), nil, 0o644))
	requireType(t, protocol.TypePathExists, h.Create(ctx, task.FileCreate{Path: full}))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	requireType(t, protocol.TypePathExists, h.Create(ctx, task.FileCreate{Path: file}))
}

func TestCreateFile(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "nested", "dir", "hello.txt")

	err := h.Create(context.Background(), task.FileCreate{Path: path, Content: contentPtr(t, "utf-8", "hello\n")})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCreateFileExistingKeepsContent(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := h.Create(context.Background(), task.FileCreate{Path: path, Content: contentPtr(t, "utf-8", "replacement")})
	requireType(t, protocol.TypePathExists, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestCreateFileParentIsFile(t *testing.T) {
	h, root := newTestHandler(t)
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := h.Create(context.Background(), task.FileCreate{Path: filepath.Join(blocker, "child.txt"), Content: contentPtr(t, "utf-8", "x")})
	requireType(t, protocol.TypePathExists, err)
}

func TestCreateFileEncodings(t *testing.T) {
	h, root := newTestHandler(t)
	ctx := context.Background()

	latin := filepath.Join(root, "latin1.txt")
	require.NoError(t, h.Create(ctx, task.FileCreate{Path: latin, Content: contentPtr(t, "iso-8859-1", "café")}))
	got, err := os.ReadFile(latin)
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, got)

	bin := filepath.Join(root, "blob.bin")
	require.NoError(t, h.Create(ctx, task.FileCreate{Path: bin, Content: contentPtr(t, "base64", "AP8=")}))
	got, err = os.ReadFile(bin)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, got)

	bad := filepath.Join(root, "bad.txt")
	requireType(t, protocol.TypeEncoding, h.Create(ctx, task.FileCreate{Path: bad, Content: contentPtr(t, "iso-8859-1", "☃")}))
	_, err = os.Stat(bad)
	assert.True(t, os.IsNotExist(err), "nothing is written when encoding fails")
}

func TestCreateRelativePathUsesBaseDir(t *testing.T) {
	h, root := newTestHandler(t)
	require.NoError(t, h.Create(context.Background(), task.FileCreate{Path: "rel/file.txt", Content: contentPtr(t, "utf-8", "x")}))
	_, err := os.Stat(filepath.Join(root, "rel", "file.txt"))
	assert.NoError(t, err)
}

func TestEdit(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "edit.txt")
	require.NoError(t, os.WriteFile(path, []byte("old content that is longer"), 0o600))

	require.NoError(t, h.Edit(context.Background(), task.FileEdit{Path: path, Content: content(t, "utf-8", "new")}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "permissions are preserved")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEditErrors(t *testing.T) {
	h, root := newTestHandler(t)
	ctx := context.Background()

	requireType(t, protocol.TypeNotFound, h.Edit(ctx, task.FileEdit{Path: filepath.Join(root, "missing.txt"), Content: content(t, "utf-8", "x")}))

	dir := filepath.Join(root, "dir")
	require.NoError(t, os.Mkdir(dir, 0o755))
	requireType(t, protocol.TypePathExists, h.Edit(ctx, task.FileEdit{Path: dir, Content: content(t, "utf-8", "x")}))

	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("keep"), 0o644))
	requireType(t, protocol.TypeEncoding, h.Edit(ctx, task.FileEdit{Path: file, Content: content(t, "base64", "!!")}))
	got, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestEditThroughSymlinkKeepsLink(t *testing.T) {
	h, root := newTestHandler(t)
	target := filepath.Join(root, "target.txt")
	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))
	require.NoError(t, os.Symlink(target, link))

	require.NoError(t, h.Edit(context.Background(), task.FileEdit{Path: link, Content: content(t, "utf-8", "new")}))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestEditCancelledBeforeRenameLeavesOriginal(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "cancel.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.beforeCommit = func(string) { cancel() }

	err := h.Edit(ctx, task.FileEdit{Path: path, Content: content(t, "utf-8", "replacement")})
	requireType(t, protocol.TypeCancelled, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is discarded")
}

func TestCreateCancelledBeforeLink(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "never.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.beforeCommit = func(string) { cancel() }

	requireType(t, protocol.TypeCancelled, h.Create(ctx, task.FileCreate{Path: path, Content: contentPtr(t, "utf-8", "x")}))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileOpsIgnoreDeadline(t *testing.T) {
	h, root := newTestHandler(t)
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	assert.NoError(t, h.Create(ctx, task.FileCreate{Path: filepath.Join(root, "d")}))
}

func TestEditConcurrentReadersNeverSeePartialContent(t *testing.T) {
	h, root := newTestHandler(t)
	path := filepath.Join(root, "shared.txt")

	versionA := strings.Repeat("A", 256*1024)
	versionB := strings.Repeat("B", 256*1024)
	require.NoError(t, os.WriteFile(path, []byte(versionA), 0o644))

	var stop atomic.Bool
	var torn atomic.Int64
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				data, err := os.ReadFile(path)
				if err != nil {
					continue
				}
				if !bytes.Equal(data, []byte(versionA)) && !bytes.Equal(data, []byte(versionB)) {
					torn.Add(1)
				}
			}
		}()
	}

	for i := range 50 {
		value := versionA
		if i%2 == 0 {
			value = versionB
		}
		require.NoError(t, h.Edit(context.Background(), task.FileEdit{Path: path, Content: content(t, "utf-8", value)}))
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load(), "a reader observed a partially written file")
}

func TestDelete(t *testing.T) {
	h, root := newTestHandler(t)
	ctx := context.Background()

	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, h.Delete(ctx, task.FileDelete{Path: file}))
	_, err := os.Lstat(file)
	assert.True(t, os.IsNotExist(err))

	tree := filepath.Join(root, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "a", "b", "c.txt"), []byte("x"), 0o644))
	require.NoError(t, h.Delete(ctx, task.FileDelete{Path: tree}))
	_, err = os.Lstat(tree)
	assert.True(t, os.IsNotExist(err))

	requireType(t, protocol.TypeNotFound, h.Delete(ctx, task.FileDelete{Path: filepath.Join(root, "missing")}))
}

func TestDeleteSymlinkKeepsTarget(t *testing.T) {
	h, root := newTestHandler(t)
	targetDir := filepath.Join(root, "target")
	require.NoError(t, os.Mkdir(targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "keep.txt"), []byte("x"), 0o644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(targetDir, link))

	require.NoError(t, h.Delete(context.Background(), task.FileDelete{Path: link}))

	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(targetDir, "keep.txt"))
	assert.NoError(t, err)
}

func TestPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	h, root := newTestHandler(t)
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o555))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	err := h.Create(context.Background(), task.FileCreate{Path: filepath.Join(locked, "f.txt"), Content: contentPtr(t, "utf-8", "x")})
	requireType(t, protocol.TypePermission, err)
}

func TestCancelledBeforeStart(t *testing.T) {
	h, root := newTestHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	requireType(t, protocol.TypeCancelled, h.Delete(ctx, task.FileDelete{Path: root}))
	_, err := os.Stat(root)
	assert.NoError(t, err)
}
