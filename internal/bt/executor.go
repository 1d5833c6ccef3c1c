package bt

import (
	"errors"
	"fmt"
	"io/fs"
)

// Outcome is the result of one BackupExecutor.Execute call.
type Outcome int

const (
	// OutcomeSkipped means nothing was written: the source vanished, is a
	// directory, is ignored, or lies outside the watched tree.
	OutcomeSkipped Outcome = iota
	// OutcomeSuccess means the file was copied into the backup tree.
	OutcomeSuccess
	// OutcomeDirCreateError means the destination directory could not be created.
	OutcomeDirCreateError
	// OutcomeCopyError means the copy itself failed.
	OutcomeCopyError
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	case OutcomeDirCreateError:
		return "dir_create_error"
	case OutcomeCopyError:
		return "copy_error"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{OutcomeSkipped, OutcomeSuccess, OutcomeDirCreateError, OutcomeCopyError} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome: %q", s)
}

// BackupExecutor copies one changed file into the backup tree and records
// the result. Failures are logged and reported as an Outcome; they are never
// returned as errors, so a caller can keep processing other paths.
type BackupExecutor struct {
	settings Settings
	resolver *PathResolver
	fsmgr    FilesystemManager
	activity ActivityLog
	catalog  Catalog
	logger   Logger
	clock    Clock
	runID    string
}

// NewBackupExecutor creates a BackupExecutor for the given settings.
// runID tags catalog records written by this executor.
func NewBackupExecutor(settings Settings, fsmgr FilesystemManager, activity ActivityLog, catalog Catalog, logger Logger, clock Clock, runID string) *BackupExecutor {
	if catalog == nil {
		catalog = NopCatalog{}
	}
	return &BackupExecutor{
		settings: settings,
		resolver: NewPathResolver(settings.SourceDir, settings.BackupDir, settings.Format, fsmgr, clock),
		fsmgr:    fsmgr,
		activity: activity,
		catalog:  catalog,
		logger:   logger,
		clock:    clock,
		runID:    runID,
	}
}

// Resolver returns the PathResolver the executor uses.
func (e *BackupExecutor) Resolver() *PathResolver {
	return e.resolver
}

// Execute backs up sourcePath. The file is re-read from disk; nothing about
// the notification that triggered this call is trusted.
func (e *BackupExecutor) Execute(sourcePath string) Outcome {
	info, err := e.fsmgr.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.logger.Debug("source vanished before backup", "path", sourcePath)
			return OutcomeSkipped
		}
		return e.fail(OutcomeCopyError, sourcePath, "", "ERROR copy: %v", err)
	}
	if info.IsDir() {
		return OutcomeSkipped
	}

	ignored, err := e.fsmgr.IsIgnored(sourcePath, e.settings.SourceDir)
	if err != nil {
		e.logger.Warn("checking ignore rules", "path", sourcePath, "error", err)
	}
	if ignored {
		e.logger.Debug("path ignored", "path", sourcePath)
		return OutcomeSkipped
	}

	target, ok := e.resolver.Resolve(sourcePath)
	if !ok {
		e.logger.Debug("path outside watched tree", "path", sourcePath)
		return OutcomeSkipped
	}

	if err := e.fsmgr.MkdirAll(target.DestDir); err != nil {
		return e.fail(OutcomeDirCreateError, sourcePath, target.DestFile, "ERROR creating dir: %v", err)
	}

	if err := e.fsmgr.CopyFile(sourcePath, target.DestFile); err != nil {
		return e.fail(OutcomeCopyError, sourcePath, target.DestFile, "ERROR copy: %v", err)
	}

	e.record(fmt.Sprintf("Backup Success: %s -> %s", sourcePath, target.DestFile))
	e.logger.Info("file backed up", "path", sourcePath, "dest", target.DestFile, "snapshot", target.SnapshotName)
	e.catalogue(OutcomeSuccess, sourcePath, target.DestFile, nil)
	return OutcomeSuccess
}

func (e *BackupExecutor) fail(outcome Outcome, sourcePath, destPath, format string, err error) Outcome {
	e.record(fmt.Sprintf(format, err))
	e.logger.Error("backup failed", "path", sourcePath, "outcome", outcome.String(), "error", err)
	e.catalogue(outcome, sourcePath, destPath, err)
	return outcome
}

func (e *BackupExecutor) record(message string) {
	if err := e.activity.Record(message); err != nil {
		e.logger.Warn("writing activity log", "error", err)
	}
}

func (e *BackupExecutor) catalogue(outcome Outcome, sourcePath, destPath string, cause error) {
	rec := &BackupRecord{
		RunID:      e.runID,
		SourcePath: sourcePath,
		DestPath:   destPath,
		Outcome:    outcome,
		CreatedAt:  e.clock.Now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := e.catalog.RecordBackup(rec); err != nil {
		e.logger.Warn("recording backup in catalog", "path", sourcePath, "error", err)
	}
}
