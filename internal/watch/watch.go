// Package watch turns filesystem events into document events for a session.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/scanner"
	"github.com/alexohotnikov/envs-checker-vscode/internal/session"
)

type eventKind int

const (
	eventSaved eventKind = iota
	eventOpened
)

type pendingEvent struct {
	kind eventKind
	at   time.Time
}

// Watcher watches directories for working file and template changes and
// delivers them as document events. It implements session.Host.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	scanner  *scanner.Scanner
	logger   *zap.Logger
	dirs     []string
	saved    []session.Handler
	opened   []session.Handler
	commands map[string]session.Handler
	quickFix []session.QuickFixHandler
	pending  map[string]pendingEvent
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	closed   bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before its event fires
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New creates a watcher that recognises files with the scanner's names
func New(sc *scanner.Scanner, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		scanner:  sc,
		logger:   zap.NewNop(),
		commands: make(map[string]session.Handler),
		pending:  make(map[string]pendingEvent),
		debounce: 300 * time.Millisecond, // Collapse rapid saves
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// OnDocumentSaved registers a handler for working file writes
func (w *Watcher) OnDocumentSaved(h session.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.saved = append(w.saved, h)
}

// OnDocumentOpened registers a handler for working files that appear,
// including the ones already present when the watcher starts
func (w *Watcher) OnDocumentOpened(h session.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, h)
}

// OnCommand registers a named command handler
func (w *Watcher) OnCommand(name string, h session.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands[name] = h
}

// OnQuickFix registers a handler for per-finding fixes
func (w *Watcher) OnQuickFix(h session.QuickFixHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quickFix = append(w.quickFix, h)
}

// QuickFix invokes the quick-fix handlers for one finding of a document
func (w *Watcher) QuickFix(path string, f analyzer.Finding) error {
	w.mu.Lock()
	handlers := append([]session.QuickFixHandler(nil), w.quickFix...)
	w.mu.Unlock()
	if len(handlers) == 0 {
		return fmt.Errorf("no quick fix registered")
	}

	doc, err := session.LoadDocument(path)
	if err != nil {
		return err
	}
	for _, h := range handlers {
		if err := h(doc, f); err != nil {
			return err
		}
	}
	return nil
}

// Run invokes a registered command on a document
func (w *Watcher) Run(name, path string) error {
	w.mu.Lock()
	h, ok := w.commands[name]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	doc, err := session.LoadDocument(path)
	if err != nil {
		return err
	}
	return h(doc)
}

// Add watches a directory. Only the directory itself is watched, not its children.
func (w *Watcher) Add(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	w.mu.Lock()
	w.dirs = append(w.dirs, abs)
	w.mu.Unlock()

	w.logger.Debug("Watching directory", zap.String("dir", abs))
	return nil
}

// Start fires an opened event for every working file already present and
// begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("watcher is stopped")
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	dirs := append([]string(nil), w.dirs...)
	w.mu.Unlock()

	for _, dir := range dirs {
		for _, path := range w.workingFiles(dir) {
			w.dispatch(eventOpened, path)
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher, waits for the event loop to exit if it was started
// and releases the underlying watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Failed to close watcher", zap.Error(err))
	}
}

// Done is closed when the event loop exits
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-ticker.C:
			w.flush(time.Now())
		}
	}
}

func (w *Watcher) tick() time.Duration {
	if t := w.debounce / 3; t > 0 {
		return t
	}
	return 10 * time.Millisecond
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var kind eventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = eventOpened
	case event.Op&fsnotify.Write != 0:
		kind = eventSaved
	default:
		return // Ignore remove, rename, chmod
	}

	switch {
	case w.scanner.IsWorkingFile(event.Name):
		w.queue(event.Name, kind)
	case w.scanner.IsTemplateFile(event.Name):
		// A changed template invalidates every working file next to it
		for _, path := range w.workingFiles(filepath.Dir(event.Name)) {
			w.queue(path, eventSaved)
		}
	}
}

func (w *Watcher) queue(path string, kind eventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A create followed by writes is still an open
	if prev, ok := w.pending[path]; ok && prev.kind == eventOpened {
		kind = eventOpened
	}
	w.pending[path] = pendingEvent{kind: kind, at: time.Now()}
}

// flush dispatches every pending event that has been quiet long enough
func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	var ready []string
	kinds := make(map[string]eventKind)
	for path, ev := range w.pending {
		if now.Sub(ev.at) >= w.debounce {
			ready = append(ready, path)
			kinds[path] = ev.kind
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		w.dispatch(kinds[path], path)
	}
}

func (w *Watcher) dispatch(kind eventKind, path string) {
	doc, err := session.LoadDocument(path)
	if err != nil {
		w.logger.Debug("Skipping unreadable document", zap.String("path", path), zap.Error(err))
		return
	}

	w.mu.Lock()
	handlers := w.saved
	if kind == eventOpened {
		handlers = w.opened
	}
	handlers = append([]session.Handler(nil), handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		if err := h(doc); err != nil {
			w.logger.Warn("Handler failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (w *Watcher) workingFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if w.scanner.IsWorkingFile(path) {
			files = append(files, path)
		}
	}
	return files
}
