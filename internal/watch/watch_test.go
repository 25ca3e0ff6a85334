package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, onReload func(context.Context) error) (stop func()) {
	t.Helper()

	w, err := New(path, 50*time.Millisecond, onReload, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcherDetectsFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuload.lua")
	require.NoError(t, os.WriteFile(path, []byte("-- initial"), 0o644))

	var reloads atomic.Int32
	stop := startWatcher(t, path, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("-- modified"), 0o644))

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuload.lua")
	require.NoError(t, os.WriteFile(path, []byte("-- 0"), 0o644))

	var reloads atomic.Int32
	stop := startWatcher(t, path, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	defer stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("-- burst"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuload.lua")
	require.NoError(t, os.WriteFile(path, []byte("-- initial"), 0o644))

	var reloads atomic.Int32
	stop := startWatcher(t, path, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.lua"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())
}

func TestWatcherAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuload.lua")
	require.NoError(t, os.WriteFile(path, []byte("-- initial"), 0o644))

	var reloads atomic.Int32
	stop := startWatcher(t, path, func(context.Context) error {
		reloads.Add(1)
		return nil
	})
	defer stop()

	tmp := filepath.Join(dir, ".cpuload.lua.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("-- saved"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherKeepsRunningAfterReloadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpuload.lua")
	require.NoError(t, os.WriteFile(path, []byte("-- initial"), 0o644))

	var calls atomic.Int32
	stop := startWatcher(t, path, func(context.Context) error {
		calls.Add(1)
		return errors.New("bad config")
	})
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("-- one"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("-- two"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "cpuload.lua"), 0, nil, nil)
	assert.Error(t, err)
}
