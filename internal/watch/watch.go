// ABOUTME: Filesystem watcher that surfaces new and rewritten documents for ingestion
// ABOUTME: Wraps fsnotify with extension filtering across multiple directories

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a candidate file.
type Op int

const (
	// Created means the file appeared in a watched directory.
	Created Op = iota
	// Modified means an existing file was rewritten.
	Modified
)

// String returns the operation name for logging.
func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is one ingestion candidate observed on disk.
type Event struct {
	Path string
	Op   Op
}

// defaultExtensions covers the document types the backend ingests.
var defaultExtensions = []string{".pdf", ".csv", ".txt", ".md"}

// Watcher monitors directories for documents worth uploading.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	logger     *slog.Logger
}

// New creates a watcher filtering for the given file extensions.
// Extensions are matched case-insensitively and may be given with or
// without the leading dot. An empty list falls back to the default
// document types.
func New(extensions []string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}

	return &Watcher{
		watcher:    w,
		extensions: normalized,
		logger:     slog.Default().With("component", "watch"),
	}, nil
}

// Watch starts monitoring the directories and emits candidate events
// until the context is cancelled. The returned channel is closed when
// watching stops.
func (w *Watcher) Watch(ctx context.Context, dirs ...string) (<-chan Event, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logger.Info("watching directory", "dir", dir)
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatched(event.Name) {
					continue
				}

				var op Op
				switch {
				case event.Op.Has(fsnotify.Create):
					op = Created
				case event.Op.Has(fsnotify.Write):
					op = Modified
				default:
					continue
				}

				select {
				case events <- Event{Path: event.Name, Op: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// isWatched reports whether the file's extension is on the watch list.
func (w *Watcher) isWatched(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
