package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) <-chan string {
	t.Helper()
	changes := make(chan string, 16)
	w, err := New(root, 20*time.Millisecond, func(_ context.Context, dir string) {
		changes <- dir
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give Run a moment to register the watches
	time.Sleep(50 * time.Millisecond)
	return changes
}

func waitForChange(t *testing.T, changes <-chan string) string {
	t.Helper()
	select {
	case dir := <-changes:
		return dir
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	return ""
}

func TestWatcher_ReportsTranscriptWrites(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "-work-app")
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	changes := startWatcher(t, root)

	path := filepath.Join(projectDir, "a.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("{}\n{}\n"), 0644))

	assert.Equal(t, projectDir, waitForChange(t, changes))

	select {
	case dir := <-changes:
		t.Fatalf("writes within the debounce window were reported twice: %s", dir)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_PicksUpNewProjectDirectories(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root)

	projectDir := filepath.Join(root, "-work-new")
	require.NoError(t, os.MkdirAll(projectDir, 0755))
	assert.Equal(t, projectDir, waitForChange(t, changes))

	// Let the watch on the new directory settle
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "b.jsonl"), []byte("{}\n"), 0644))
	assert.Equal(t, projectDir, waitForChange(t, changes))
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "-work-app")
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	changes := startWatcher(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "notes.txt"), []byte("x"), 0644))

	select {
	case dir := <-changes:
		t.Fatalf("unexpected change for %s", dir)
	case <-time.After(200 * time.Millisecond):
	}
}
