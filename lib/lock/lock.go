package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned by WithLock when the lock stays held past the timeout.
var ErrLocked = errors.New("lock is held by another process")

const retryInterval = 100 * time.Millisecond

// FileLock is a cross-process lock backed by exclusively created files.
type FileLock struct {
	dir    string
	logger *slog.Logger
}

// NewFileLock creates locks under dir. An empty dir uses the system temp dir.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "movierec-locks")
	}
	return &FileLock{dir: dir, logger: logger}
}

// TryLock attempts to acquire key until timeout elapses. Lock files older than
// twice the timeout are treated as abandoned and removed.
func (fl *FileLock) TryLock(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	lockFile := fl.path(key)

	if err := os.MkdirAll(fl.dir, 0750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// #nosec G304 - lockFile is built from the lock dir and a cleaned key
		file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			if !os.IsExist(err) {
				return false, fmt.Errorf("failed to create lock file: %w", err)
			}
			if fl.isStale(lockFile, timeout*2) {
				fl.logger.Warn("Removing stale lock file", slog.String("file", lockFile))
				if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
					fl.logger.Error("Failed to remove stale lock file", slog.String("file", lockFile), slog.Any("error", err))
				}
				continue
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryInterval):
				continue
			}
		}

		if _, err := fmt.Fprintf(file, "%d\n%d\n", time.Now().Unix(), os.Getpid()); err != nil {
			_ = file.Close()
			_ = os.Remove(lockFile)
			return false, fmt.Errorf("failed to write to lock file: %w", err)
		}
		if err := file.Close(); err != nil {
			return false, fmt.Errorf("failed to close lock file: %w", err)
		}

		fl.logger.Debug("Acquired lock", slog.String("key", key), slog.String("file", lockFile))
		return true, nil
	}

	return false, nil
}

// Unlock releases key. Releasing a lock that is not held is not an error.
func (fl *FileLock) Unlock(key string) error {
	lockFile := fl.path(key)
	if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	fl.logger.Debug("Released lock", slog.String("key", key), slog.String("file", lockFile))
	return nil
}

// WithLock runs fn while holding key.
func (fl *FileLock) WithLock(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	ok, err := fl.TryLock(ctx, key, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, key)
	}
	defer func() {
		if err := fl.Unlock(key); err != nil {
			fl.logger.Error("Failed to release lock", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn()
}

func (fl *FileLock) path(key string) string {
	return filepath.Join(fl.dir, filepath.Base(filepath.Clean("/"+key))+".lock")
}

func (fl *FileLock) isStale(lockFile string, staleAfter time.Duration) bool {
	info, err := os.Stat(lockFile)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > staleAfter
}
