// Package watcher ingests conversation exports dropped into an inbox
// directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventHandler handles one newly created file.
type EventHandler func(ctx context.Context, filePath string) error

// SupportedExtensions lists the file types picked up from the inbox.
var SupportedExtensions = []string{".json", ".txt", ".srt"}

// DefaultSettleDelay is how long a new file is left alone before it is read,
// so writers can finish.
const DefaultSettleDelay = 500 * time.Millisecond

type Watcher struct {
	inputDir      string
	handler       EventHandler
	logger        *slog.Logger
	watcher       *fsnotify.Watcher
	maxConcurrent int
	semaphore     chan struct{}
	settle        time.Duration
	wg            sync.WaitGroup
}

// New watches inputDir. At most maxConcurrent files are handled at once
// (default 2).
func New(inputDir string, handler EventHandler, logger *slog.Logger, maxConcurrent int) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(inputDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Watcher{
		inputDir:      inputDir,
		handler:       handler,
		logger:        logger,
		watcher:       fw,
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
		settle:        DefaultSettleDelay,
	}, nil
}

// SetSettleDelay overrides DefaultSettleDelay.
func (w *Watcher) SetSettleDelay(d time.Duration) {
	w.settle = d
}

// Start blocks, dispatching created files to the handler until ctx is
// cancelled. In-flight files are allowed to finish before it returns.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("inbox watcher started",
		"dir", w.inputDir,
		"max_concurrent", w.maxConcurrent,
		"extensions", SupportedExtensions,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("waiting for in-flight files")
			w.wg.Wait()
			w.logger.Info("inbox watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !IsSupported(event.Name) {
				w.logger.Debug("ignoring unsupported file", "path", event.Name)
				continue
			}
			w.logger.Info("new file detected", "path", event.Name)

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(filePath string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()

					select {
					case <-time.After(w.settle):
					case <-ctx.Done():
						return
					}
					if err := w.handler(ctx, filePath); err != nil {
						w.logger.Error("failed to process file", "path", filePath, "error", err)
					}
				}(event.Name)
			case <-ctx.Done():
				w.wg.Wait()
				return nil
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.wg.Wait()
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// IsSupported reports whether path has an inbox extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
