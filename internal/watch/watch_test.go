// ABOUTME: Tests for the document directory watcher
// ABOUTME: Covers extension filtering, multi-directory watching, and shutdown

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, extensions []string) *Watcher {
	t.Helper()

	w, err := New(extensions)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// waitEvent receives one event or fails the test.
func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()

	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for watch event")
		return Event{}
	}
}

func TestNew_NormalizesExtensions(t *testing.T) {
	w := newTestWatcher(t, []string{"PDF", " .Csv ", "txt"})
	assert.Equal(t, []string{".pdf", ".csv", ".txt"}, w.extensions)
}

func TestNew_DefaultExtensions(t *testing.T) {
	w := newTestWatcher(t, nil)
	assert.NotEmpty(t, w.extensions)
	assert.Contains(t, w.extensions, ".pdf")
	assert.Contains(t, w.extensions, ".csv")
}

func TestWatcher_SeesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, []string{".txt"})

	events, err := w.Watch(t.Context(), dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	ev := waitEvent(t, events)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Created, ev.Op)
}

func TestWatcher_SeesRewrittenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0644))

	w := newTestWatcher(t, []string{".csv"})
	events, err := w.Watch(t.Context(), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	ev := waitEvent(t, events)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, Modified, ev.Op)
}

func TestWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, []string{".txt"})

	events, err := w.Watch(t.Context(), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.json"), []byte("{}"), 0644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for unwatched extension: %+v", ev)
	case <-time.After(300 * time.Millisecond):
		// expected, no event
	}
}

func TestWatcher_ExtensionMatchIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, []string{".pdf"})

	events, err := w.Watch(t.Context(), dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "REPORT.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))

	ev := waitEvent(t, events)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_MultipleDirectories(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	w := newTestWatcher(t, []string{".md"})

	events, err := w.Watch(t.Context(), dirA, dirB)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dirA, "a.md"), []byte("# a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "b.md"), []byte("# b"), 0644))

	seen := map[string]bool{}
	for range 2 {
		ev := waitEvent(t, events)
		seen[filepath.Base(ev.Path)] = true
	}
	assert.True(t, seen["a.md"], "missing event from first directory")
	assert.True(t, seen["b.md"], "missing event from second directory")
}

func TestWatcher_NoDirectories(t *testing.T) {
	w := newTestWatcher(t, nil)
	_, err := w.Watch(t.Context())
	require.Error(t, err)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := newTestWatcher(t, nil)
	_, err := w.Watch(t.Context(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestWatcher_ContextCancelClosesChannel(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, []string{".txt"})

	ctx, cancel := context.WithCancel(t.Context())
	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "unknown", Op(99).String())
}
