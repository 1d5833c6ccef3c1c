package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"autobackup/internal/activitylog"
	"autobackup/internal/bt"
	"autobackup/internal/config"
	"autobackup/internal/database"
	"autobackup/internal/fs"
	"autobackup/internal/watch"
)

// WorkerApp is the application layer between the CLI and bt.Worker.
// It constructs all dependencies from config and owns their lifecycle.
// The caller must call Close when done.
type WorkerApp struct {
	cfg       *config.Config
	settings  bt.Settings
	fsmgr     *fs.OSFilesystemManager
	activity  *activitylog.FileLog
	catalog   bt.Catalog
	logger    bt.Logger
	clock     bt.Clock
	run       *bt.WorkerRun
	logCloser io.Closer
}

// NewWorkerApp creates a fully wired WorkerApp. It returns
// bt.ErrNotConfigured when the source or backup directory is unset.
func NewWorkerApp(cfg *config.Config) (*WorkerApp, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	clock := bt.RealClock{}
	run := &bt.WorkerRun{
		ID:        bt.UUIDGenerator{}.New(),
		Mode:      settings.Mode,
		SourceDir: settings.SourceDir,
		BackupDir: settings.BackupDir,
		StartedAt: clock.Now(),
	}

	slogger, logCloser, err := newLogger(cfg.LogDir, run.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	patterns := append([]string{}, cfg.Ignore...)
	fromFile, err := fs.ParseIgnoreFile(filepath.Join(settings.SourceDir, fs.IgnoreFileName))
	if err != nil {
		logger.Warn("reading ignore file", "error", err)
	}
	patterns = append(patterns, fromFile...)

	catalog, err := database.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		// the catalog is reporting only; backups run without it
		logger.Warn("opening catalog, continuing without it", "error", err)
		catalog = bt.NopCatalog{}
	}

	return &WorkerApp{
		cfg:       cfg,
		settings:  settings,
		fsmgr:     fs.NewOSFilesystemManager(patterns),
		activity:  activitylog.New(settings.BackupDir, clock),
		catalog:   catalog,
		logger:    logger,
		clock:     clock,
		run:       run,
		logCloser: logCloser,
	}, nil
}

// Settings returns the settings snapshot the worker runs with.
func (a *WorkerApp) Settings() bt.Settings {
	return a.settings
}

// Run starts the change source for the configured mode and processes
// changes until ctx is cancelled. A watcher that cannot be started is
// logged and returned as an error; there is no fallback to scanning.
func (a *WorkerApp) Run(ctx context.Context) error {
	a.record("Worker started watching...")
	a.logger.Info("worker starting",
		"mode", string(a.settings.Mode),
		"source", a.settings.SourceDir,
		"backup", a.settings.BackupDir,
		"time_value", a.settings.Seconds(),
		"format", a.settings.Format,
	)

	if err := a.catalog.StartRun(a.run); err != nil {
		a.logger.Warn("registering run in catalog", "error", err)
	}

	var source bt.ChangeSource
	switch a.settings.Mode {
	case bt.ModePeriodic:
		a.record(fmt.Sprintf("--- MODE: PERIODIC SCAN (Every %ss) ---", a.settings.Seconds()))
		source = bt.NewScanSource(a.fsmgr, a.settings.SourceDir, a.settings.TimeValue, a.clock, a.activity, a.logger)
	default:
		events, err := a.startWatcher()
		if err != nil {
			a.record(fmt.Sprintf("Error starting watcher: %v", err))
			a.logger.Error("starting watcher", "error", err)
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer func() {
			if err := events.Stop(); err != nil {
				a.logger.Warn("stopping watcher", "error", err)
			}
		}()
		a.record(fmt.Sprintf("--- MODE: REAL-TIME EVENT (Debounce: %ss) ---", a.settings.Seconds()))
		source = bt.NewDebouncedSource(events, a.fsmgr, a.settings.TimeValue, a.clock, a.activity, a.logger)
	}

	executor := bt.NewBackupExecutor(a.settings, a.fsmgr, a.activity, a.catalog, a.logger, a.clock, a.run.ID)
	return bt.NewWorker(a.settings, source, executor, a.activity, a.logger).Run(ctx)
}

func (a *WorkerApp) startWatcher() (*watch.EventSource, error) {
	events, err := watch.NewEventSource(a.logger)
	if err != nil {
		return nil, err
	}
	// a backup tree nested in the source must not feed itself
	if err := events.Start(a.settings.SourceDir, a.settings.BackupDir); err != nil {
		events.Stop()
		return nil, err
	}
	return events, nil
}

func (a *WorkerApp) record(message string) {
	if err := a.activity.Record(message); err != nil {
		a.logger.Warn("writing activity log", "error", err)
	}
}

// Close releases the catalog and the diagnostic log.
func (a *WorkerApp) Close() error {
	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log: %w", err)
		}
	}
	return firstErr
}

// HistoryApp reads backup records from the catalog.
type HistoryApp struct {
	catalog bt.Catalog
}

// NewHistoryApp opens the configured catalog for reading.
func NewHistoryApp(cfg *config.Config) (*HistoryApp, error) {
	catalog, err := database.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return &HistoryApp{catalog: catalog}, nil
}

// Recent returns up to limit backup records, newest first.
func (a *HistoryApp) Recent(limit int) ([]*bt.BackupRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return a.catalog.ListBackups(limit)
}

func (a *HistoryApp) Close() error {
	return a.catalog.Close()
}
