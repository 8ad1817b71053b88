package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestUploadJanitorSweep(t *testing.T) {
	dir := t.TempDir()
	stale := touch(t, dir, "media-1.png", 2*time.Hour)
	stalePoster := touch(t, dir, "posterImage-2.jpg", 3*time.Hour)
	fresh := touch(t, dir, "media-3.png", time.Minute)
	unrelated := touch(t, dir, "notes.txt", 5*time.Hour)

	j := NewUploadJanitor(dir, "media", "posterImage")
	removed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	for _, p := range []string{stale, stalePoster} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
	for _, p := range []string{fresh, unrelated} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestUploadJanitorMissingDir(t *testing.T) {
	j := NewUploadJanitor(filepath.Join(t.TempDir(), "gone"), "media")
	removed, err := j.Sweep()
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestUploadJanitorStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	stale := touch(t, dir, "media-old.png", 2*time.Hour)

	j := NewUploadJanitor(dir, "media")
	j.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
