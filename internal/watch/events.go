// Package watch turns fsnotify's per-directory notifications into a
// recursive stream of changed paths for a source tree.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"autobackup/internal/bt"
)

const (
	eventBuffer = 1024
	errorBuffer = 16
)

// EventSource watches a directory tree and emits the paths of files that
// are created or written. New subdirectories are watched as they appear.
// Removals, renames away and permission changes are not reported.
type EventSource struct {
	watcher *fsnotify.Watcher
	logger  bt.Logger
	events  chan string
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	exclude []string
}

// NewEventSource creates an EventSource. It must be started with Start
// before it emits anything.
func NewEventSource(logger bt.Logger) (*EventSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &EventSource{
		watcher: watcher,
		logger:  logger,
		events:  make(chan string, eventBuffer),
		errors:  make(chan error, errorBuffer),
		done:    make(chan struct{}),
	}, nil
}

// Start watches root and every directory below it, except the trees rooted
// at exclude. Failing to watch root itself is an error; subdirectories that
// cannot be watched are logged and skipped.
func (s *EventSource) Start(root string, exclude ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("watcher already running")
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to watch %s: not a directory", root)
	}

	for _, dir := range exclude {
		s.exclude = append(s.exclude, filepath.Clean(dir))
	}
	if err := s.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	s.addTree(root, nil)

	s.running = true
	s.wg.Add(1)
	go s.processEvents()
	return nil
}

// Stop stops watching and closes the Events and Errors channels.
// It blocks until the event goroutine has exited. Stopping a source that
// was never started only releases the underlying watcher.
func (s *EventSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return s.watcher.Close()
	}
	s.running = false
	s.mu.Unlock()

	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()

	close(s.events)
	close(s.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Events returns the channel of changed paths. Closed by Stop.
func (s *EventSource) Events() <-chan string {
	return s.events
}

// Errors returns the channel of watch errors. Closed by Stop.
func (s *EventSource) Errors() <-chan error {
	return s.errors
}

// WatchList returns the directories currently being watched.
func (s *EventSource) WatchList() []string {
	return s.watcher.WatchList()
}

func (s *EventSource) processEvents() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.handle(event) {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			case <-s.done:
				return
			}
		}
	}
}

// handle forwards one fsnotify event. It returns false once the source is stopping.
func (s *EventSource) handle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return true
	}
	if s.excluded(event.Name) {
		return true
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files can land in a new directory before it is watched, so
			// everything found while adding it is reported as well.
			var found []string
			s.addTree(event.Name, &found)
			for _, p := range found {
				if !s.emit(p) {
					return false
				}
			}
		}
	}
	return s.emit(event.Name)
}

func (s *EventSource) emit(path string) bool {
	select {
	case s.events <- path:
		return true
	case <-s.done:
		return false
	}
}

// addTree watches every directory below dir. When found is non-nil the
// regular files encountered are appended to it.
func (s *EventSource) addTree(dir string, found *[]string) {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if found != nil && d.Type().IsRegular() {
				*found = append(*found, p)
			}
			return nil
		}
		if s.excluded(p) {
			return filepath.SkipDir
		}
		if p == dir && found == nil {
			// root was added by Start
			return nil
		}
		if err := s.watcher.Add(p); err != nil {
			if errors.Is(err, fsnotify.ErrClosed) {
				return err
			}
			s.logger.Warn("watching directory", "path", p, "error", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		s.logger.Warn("walking new directory", "path", dir, "error", err)
	}
}

func (s *EventSource) excluded(path string) bool {
	for _, dir := range s.exclude {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

var _ bt.Notifier = (*EventSource)(nil)
