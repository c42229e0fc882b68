// ABOUTME: Watch daemon core for lens-watch
// ABOUTME: Uploads new and changed documents from watched folders to the backend

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lucky110405/major-prototype/internal/api"
	"github.com/Lucky110405/major-prototype/internal/dedupe"
	"github.com/Lucky110405/major-prototype/internal/entity"
	"github.com/Lucky110405/major-prototype/internal/watch"
)

// uploadTimeout bounds a single document upload.
const uploadTimeout = 2 * time.Minute

// Daemon connects filesystem watches to the backend ingestion endpoint.
type Daemon struct {
	config  *Config
	client  *api.Client
	watcher *watch.Watcher
	seen    *dedupe.Cache
	logger  *slog.Logger

	// Track paths we're actively processing to avoid duplicate uploads
	processing sync.Map
}

// NewDaemon creates a new watch daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	watcher, err := watch.New(cfg.Watch.Extensions)
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	client := api.New(cfg.Backend.URL, cfg.Backend.Token, uploadTimeout, logger)

	return &Daemon{
		config:  cfg,
		client:  client,
		watcher: watcher,
		seen:    dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxEntries),
		logger:  logger.With("component", "daemon"),
	}, nil
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	events, err := d.watcher.Watch(ctx, d.config.Watch.Dirs...)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	d.logger.Info("watching for documents",
		"dirs", d.config.Watch.Dirs,
		"settle", d.config.Watch.Settle,
	)

	// The event channel closes when the context is cancelled.
	for ev := range events {
		go d.processEvent(ctx, ev)
	}

	d.logger.Info("shutting down watch daemon")
	return nil
}

// processEvent waits for the file to settle, then uploads it unless the
// same version was uploaded already.
func (d *Daemon) processEvent(ctx context.Context, ev watch.Event) {
	// One in-flight upload per path; a burst of write events for the
	// same file collapses into whichever goroutine got here first.
	if _, loaded := d.processing.LoadOrStore(ev.Path, true); loaded {
		d.logger.Debug("already processing", "path", ev.Path)
		return
	}
	defer d.processing.Delete(ev.Path)

	// Let the writer finish before reading the file.
	select {
	case <-ctx.Done():
		return
	case <-time.After(d.config.Watch.Settle):
	}

	info, err := os.Stat(ev.Path)
	if err != nil {
		d.logger.Debug("file gone before upload", "path", ev.Path)
		return
	}
	if info.IsDir() {
		return
	}

	key := dedupe.Fingerprint(ev.Path, info.Size(), info.ModTime())
	if d.seen.CheckAndMark(key) {
		d.logger.Debug("skipping already uploaded version", "path", ev.Path)
		return
	}

	doc, err := d.upload(ctx, ev.Path)
	if err != nil {
		// Drop the fingerprint so the same version can retry on its
		// next event.
		d.seen.Forget(key)
		d.logger.Error("upload failed", "path", ev.Path, "error", err)
		return
	}

	d.logger.Info("document uploaded",
		"path", ev.Path,
		"id", doc.ID,
		"op", ev.Op.String(),
		"size", info.Size(),
	)
}

func (d *Daemon) upload(ctx context.Context, path string) (entity.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return entity.Document{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return d.client.UploadDocument(ctx, filepath.Base(path), f)
}

// Close releases the watcher and the dedupe cache.
func (d *Daemon) Close() {
	d.watcher.Close()
	d.seen.Close()
}
