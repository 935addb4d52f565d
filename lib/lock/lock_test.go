package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLock(t *testing.T) *FileLock {
	t.Helper()
	return NewFileLock(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTryLock(t *testing.T) {
	fl := newLock(t)
	ctx := context.Background()

	ok, err := fl.TryLock(ctx, "import", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Held: a second attempt times out without error.
	ok, err = fl.TryLock(ctx, "import", 250*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fl.Unlock("import"))
	require.NoError(t, fl.Unlock("import"))

	ok, err = fl.TryLock(ctx, "import", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryLock_Stale(t *testing.T) {
	fl := newLock(t)
	path := fl.path("import")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("1\n1\n"), 0600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	ok, err := fl.TryLock(context.Background(), "import", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryLock_Cancelled(t *testing.T) {
	fl := newLock(t)
	ok, err := fl.TryLock(context.Background(), "import", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fl.TryLock(ctx, "import", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLock(t *testing.T) {
	fl := newLock(t)
	ctx := context.Background()

	ran := false
	err := fl.WithLock(ctx, "import", time.Second, func() error {
		ran = true
		err := fl.WithLock(ctx, "import", 200*time.Millisecond, func() error { return nil })
		assert.ErrorIs(t, err, ErrLocked)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, fl.WithLock(ctx, "import", time.Second, func() error { return boom }), boom)

	_, statErr := os.Stat(fl.path("import"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPathStaysInDir(t *testing.T) {
	fl := newLock(t)
	assert.Equal(t, filepath.Join(fl.dir, "passwd.lock"), fl.path("../../etc/passwd"))
}
