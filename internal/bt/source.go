package bt

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTick is how long the event-mode loop sleeps between drain cycles.
const EventTick = 100 * time.Millisecond

// ErrNotifierClosed is returned by DebouncedSource.Next once the notifier
// has closed its event stream.
var ErrNotifierClosed = errors.New("change notifier closed")

// ChangeSource yields batches of source paths that should be backed up.
// Next blocks until the next batch is available or ctx is done. An empty
// batch is valid and means nothing is due yet.
type ChangeSource interface {
	Next(ctx context.Context) ([]string, error)
}

// Notifier is a running filesystem watch. Events carries the paths of
// created or modified entries; Errors carries non-fatal watch errors.
type Notifier interface {
	Events() <-chan string
	Errors() <-chan error
}

// DebouncedSource turns a Notifier's raw event stream into settled paths.
// Each call to Next sleeps one tick, drains everything the notifier has
// queued without blocking, and returns the paths whose debounce window has
// elapsed.
type DebouncedSource struct {
	notifier  Notifier
	fsmgr     FilesystemManager
	debouncer *Debouncer
	clock     Clock
	activity  ActivityLog
	logger    Logger
	tick      time.Duration
}

// NewDebouncedSource creates a DebouncedSource with the given debounce window.
func NewDebouncedSource(notifier Notifier, fsmgr FilesystemManager, window time.Duration, clock Clock, activity ActivityLog, logger Logger) *DebouncedSource {
	return &DebouncedSource{
		notifier:  notifier,
		fsmgr:     fsmgr,
		debouncer: NewDebouncer(window),
		clock:     clock,
		activity:  activity,
		logger:    logger,
		tick:      EventTick,
	}
}

// Debouncer exposes the pending-path state. Only the goroutine calling Next may use it.
func (s *DebouncedSource) Debouncer() *Debouncer {
	return s.debouncer
}

func (s *DebouncedSource) Next(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.clock.After(s.tick):
	}

	if err := s.drain(); err != nil {
		return nil, err
	}
	return s.debouncer.Due(s.clock.Now()), nil
}

func (s *DebouncedSource) drain() error {
	events := s.notifier.Events()
	errs := s.notifier.Errors()
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ErrNotifierClosed
			}
			s.touch(path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.record(fmt.Sprintf("Watch error: %v", err))
			s.logger.Warn("watch error", "error", err)
		default:
			return nil
		}
	}
}

func (s *DebouncedSource) touch(path string) {
	// A path that cannot be stat'ed is still queued; the executor re-checks
	// it when it falls due and skips it if it has gone.
	if info, err := s.fsmgr.Stat(path); err == nil && info.IsDir() {
		return
	}
	s.debouncer.Touch(path, s.clock.Now())
	s.logger.Debug("change queued", "path", path, "pending", s.debouncer.Pending())
}

func (s *DebouncedSource) record(message string) {
	if err := s.activity.Record(message); err != nil {
		s.logger.Warn("writing activity log", "error", err)
	}
}

// ScanSource reports files whose modification time is at or after the start
// of the previous scan pass. The first pass compares against the time the
// source was created, so files untouched since startup are never reported.
type ScanSource struct {
	fsmgr    FilesystemManager
	root     string
	interval time.Duration
	clock    Clock
	activity ActivityLog
	logger   Logger
	boundary time.Time
}

// NewScanSource creates a ScanSource that walks root every interval.
func NewScanSource(fsmgr FilesystemManager, root string, interval time.Duration, clock Clock, activity ActivityLog, logger Logger) *ScanSource {
	return &ScanSource{
		fsmgr:    fsmgr,
		root:     root,
		interval: interval,
		clock:    clock,
		activity: activity,
		logger:   logger,
		boundary: clock.Now(),
	}
}

// Boundary returns the modification time a file must reach to be reported by the next pass.
func (s *ScanSource) Boundary() time.Time {
	return s.boundary
}

func (s *ScanSource) Next(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.clock.After(s.interval):
	}
	return s.Scan(), nil
}

// Scan runs one pass immediately. When the walk fails the boundary is kept,
// so the next successful pass covers the failed one.
func (s *ScanSource) Scan() []string {
	start := s.clock.Now()

	files, err := s.fsmgr.FindFiles(s.root)
	if err != nil {
		if recErr := s.activity.Record(fmt.Sprintf("Scan error: %v", err)); recErr != nil {
			s.logger.Warn("writing activity log", "error", recErr)
		}
		s.logger.Error("scanning source tree", "root", s.root, "error", err)
		return nil
	}

	var changed []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if !f.ModTime().Before(s.boundary) {
			changed = append(changed, f.String())
		}
	}

	s.logger.Debug("scan complete", "files", len(files), "changed", len(changed), "boundary", s.boundary)
	s.boundary = start
	return changed
}
