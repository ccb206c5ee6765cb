// Package watch is the drop-folder surface: images written into a directory
// are submitted to a pipeline once they stop changing.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/andresmejia3/imagedrop/internal/pipeline"
	"github.com/andresmejia3/imagedrop/internal/types"
)

// DefaultDebounce is how long a file must be quiet before it is submitted.
const DefaultDebounce = 500 * time.Millisecond

// declaredTypes maps extensions to the type a browser picker would declare.
var declaredTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// TypeForName returns the declared type for a filename, or "" when the
// extension is not an image we accept.
func TypeForName(name string) string {
	return declaredTypes[strings.ToLower(filepath.Ext(name))]
}

// Submitter is satisfied by *pipeline.Pipeline.
type Submitter interface {
	OnFileSubmitted(ctx context.Context, file *types.SourceFile) error
}

type Watcher struct {
	Dir          string
	Submit       Submitter
	Logger       *slog.Logger
	Debounce     time.Duration
	IgnorePrefix string // artifacts written back into Dir start with this

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(dir string, submit Submitter, logger *slog.Logger, ignorePrefix string) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{Dir: dir, Submit: submit, Logger: logger, Debounce: DefaultDebounce, IgnorePrefix: ignorePrefix}
}

// accept filters out temp files, our own artifacts and non-images.
func (w *Watcher) accept(path string) bool {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' {
		return false
	}
	if w.IgnorePrefix != "" && strings.HasPrefix(base, w.IgnorePrefix) {
		return false
	}
	return TypeForName(base) != ""
}

// Run watches Dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.Dir, err)
	}
	w.Logger.Info("watching drop folder", "dir", w.Dir)

	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.accept(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watcher error", "error", err)
		}
	}
}

// schedule (re)arms the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		w.pending = make(map[string]*time.Timer)
	}
	if timer, exists := w.pending[path]; exists {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.handle(ctx, path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// handle submits one settled file.
func (w *Watcher) handle(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Removed or renamed before it settled
		w.Logger.Debug("skipping unreadable file", "file", path, "error", err)
		return
	}

	name := filepath.Base(path)
	file := &types.SourceFile{Name: name, Type: TypeForName(name), Data: data}
	w.Logger.Info("submitting dropped file", "file", name, "type", file.Type, "bytes", len(data))

	err = w.Submit.OnFileSubmitted(ctx, file)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		w.Logger.Warn("dropped file while another run is in flight", "file", name)
	case err != nil:
		// The pipeline has already logged the cause and notified the user.
		w.Logger.Debug("dropped file failed", "file", name)
	}
}
