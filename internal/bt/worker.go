package bt

import (
	"context"
	"errors"
	"fmt"
)

// Worker ties a ChangeSource to a BackupExecutor. Paths in a batch are
// executed one at a time, so sequence counts are never read concurrently
// within one process.
type Worker struct {
	settings Settings
	source   ChangeSource
	executor *BackupExecutor
	activity ActivityLog
	logger   Logger
}

// NewWorker creates a Worker.
func NewWorker(settings Settings, source ChangeSource, executor *BackupExecutor, activity ActivityLog, logger Logger) *Worker {
	return &Worker{
		settings: settings,
		source:   source,
		executor: executor,
		activity: activity,
		logger:   logger,
	}
}

// Run loops until ctx is done or the source fails. Cancellation is a clean
// stop and returns nil. Per-file failures never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		batch, err := w.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.record("Worker stopped.")
				w.logger.Info("worker stopped")
				return nil
			}
			return fmt.Errorf("waiting for changes: %w", err)
		}

		succeeded := w.RunBatch(batch)
		if w.settings.Mode == ModePeriodic && succeeded > 0 {
			w.record(fmt.Sprintf("Interval Scan: Backed up %d files.", succeeded))
		}
	}
}

// RunBatch executes every path in batch sequentially and returns how many succeeded.
func (w *Worker) RunBatch(batch []string) int {
	succeeded := 0
	for _, path := range batch {
		if w.executor.Execute(path) == OutcomeSuccess {
			succeeded++
		}
	}
	if len(batch) > 0 {
		w.logger.Debug("batch executed", "paths", len(batch), "succeeded", succeeded)
	}
	return succeeded
}

func (w *Worker) record(message string) {
	if err := w.activity.Record(message); err != nil {
		w.logger.Warn("writing activity log", "error", err)
	}
}
