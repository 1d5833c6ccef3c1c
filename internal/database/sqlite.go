package database

import (
	"database/sql"
	"fmt"
	"time"

	"autobackup/internal/bt"
	"autobackup/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const timeLayout = time.RFC3339Nano

// SQLiteCatalog implements bt.Catalog on SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens the catalog at path, migrating it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking catalog schema: %w", err)
	}

	return &SQLiteCatalog{db: db, path: path}, nil
}

// NewSQLiteCatalogFromDB wraps an existing, already migrated connection.
func NewSQLiteCatalogFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the database location the catalog was opened with.
func (s *SQLiteCatalog) Path() string {
	return s.path
}

func (s *SQLiteCatalog) StartRun(run *bt.WorkerRun) error {
	_, err := s.db.Exec(
		`INSERT INTO worker_runs (id, mode, source_dir, backup_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.SourceDir, run.BackupDir, run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting worker run: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) RecordBackup(rec *bt.BackupRecord) error {
	res, err := s.db.Exec(
		`INSERT INTO backup_records (run_id, source_path, dest_path, outcome, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SourcePath, rec.DestPath, rec.Outcome.String(), rec.Error, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting backup record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (s *SQLiteCatalog) ListBackups(limit int) ([]*bt.BackupRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, source_path, dest_path, outcome, error, created_at
		 FROM backup_records ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing backup records: %w", err)
	}
	defer rows.Close()

	var records []*bt.BackupRecord
	for rows.Next() {
		var (
			rec       bt.BackupRecord
			outcome   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.SourcePath, &rec.DestPath, &outcome, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning backup record: %w", err)
		}
		if rec.Outcome, err = bt.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("backup record %d: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("backup record %d: parsing created_at: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backup records: %w", err)
	}
	return records, nil
}

func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

var _ bt.Catalog = (*SQLiteCatalog)(nil)
