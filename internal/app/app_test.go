package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autobackup/internal/activitylog"
	"autobackup/internal/bt"
	"autobackup/internal/config"
)

type workerFixture struct {
	cfg    *config.Config
	src    string
	backup string
}

func newWorkerFixture(t *testing.T, mode string, timeValue float64, format string) *workerFixture {
	t.Helper()
	home := t.TempDir()
	f := &workerFixture{
		src:    filepath.Join(t.TempDir(), "src"),
		backup: filepath.Join(t.TempDir(), "backup"),
	}
	if err := os.MkdirAll(f.src, 0o755); err != nil {
		t.Fatal(err)
	}
	f.cfg = config.NewConfig(home)
	f.cfg.SourceDir = f.src
	f.cfg.BackupDir = f.backup
	f.cfg.Mode = mode
	f.cfg.TimeValue = timeValue
	f.cfg.Format = format
	return f
}

func (f *workerFixture) activityLog() string {
	data, _ := os.ReadFile(filepath.Join(f.backup, activitylog.FileName))
	return string(data)
}

// start runs the worker in the background until the test ends and waits
// for the mode line so that changes made afterwards are observed.
func (f *workerFixture) start(t *testing.T) (stop func() error) {
	t.Helper()
	a, err := NewWorkerApp(f.cfg)
	if err != nil {
		t.Fatalf("NewWorkerApp() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	stopped := false
	stop = func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		err := <-done
		a.Close()
		return err
	}
	t.Cleanup(func() { stop() })

	eventually(t, "mode line", func() bool {
		return strings.Contains(f.activityLog(), "--- MODE: ")
	})
	return stop
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func fileEquals(path string, want []byte) bool {
	got, err := os.ReadFile(path)
	return err == nil && bytes.Equal(got, want)
}

func TestWorkerApp_EventModeRootFile(t *testing.T) {
	f := newWorkerFixture(t, "event", 0.3, "$top_folder-$count")
	f.cfg.Catalog = config.CatalogConfig{Type: "sqlite", DataDir: filepath.Join(t.TempDir(), "db")}
	stop := f.start(t)

	content := []byte("scenario a")
	src := filepath.Join(f.src, "a.txt")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(f.backup, "Root", "Root-1", "a.txt")
	eventually(t, "backup of a.txt", func() bool { return fileEquals(dest, content) })

	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	log := f.activityLog()
	for _, want := range []string{
		" - Worker started watching...\n",
		" - --- MODE: REAL-TIME EVENT (Debounce: 0.3s) ---\n",
		" - Backup Success: " + src + " -> " + dest + "\n",
		" - Worker stopped.\n",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("activity log missing %q:\n%s", want, log)
		}
	}

	history, err := NewHistoryApp(f.cfg)
	if err != nil {
		t.Fatalf("NewHistoryApp() error = %v", err)
	}
	defer history.Close()
	recs, err := history.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) == 0 || recs[len(recs)-1].DestPath != dest || recs[len(recs)-1].Outcome != bt.OutcomeSuccess {
		t.Errorf("history = %+v, want a success record for %s", recs, dest)
	}
}

func TestWorkerApp_EventModeNestedFile(t *testing.T) {
	f := newWorkerFixture(t, "event", 0.3, "$top_folder-$count")
	f.cfg.Catalog = config.CatalogConfig{Type: "none"}
	if err := os.MkdirAll(filepath.Join(f.src, "proj", "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	f.start(t)

	content := []byte("scenario b")
	if err := os.WriteFile(filepath.Join(f.src, "proj", "sub", "b.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(f.backup, "proj", "proj-1", "sub", "b.txt")
	eventually(t, "backup of proj/sub/b.txt", func() bool { return fileEquals(dest, content) })
}

func TestWorkerApp_EventModeIgnoresPatterns(t *testing.T) {
	f := newWorkerFixture(t, "event", 0.2, "$top_folder-$count")
	f.cfg.Catalog = config.CatalogConfig{Type: "none"}
	f.cfg.Ignore = []string{"*.swp"}
	if err := os.WriteFile(filepath.Join(f.src, ".autobackupignore"), []byte("scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(f.src, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}
	f.start(t)

	for name, content := range map[string]string{
		"notes.swp":       "swap",
		"scratch/tmp.txt": "scratch",
		"keep.txt":        "keep",
	} {
		if err := os.WriteFile(filepath.Join(f.src, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, "backup of keep.txt", func() bool {
		return strings.Contains(f.activityLog(), "keep.txt")
	})
	// give ignored files the same debounce window before checking
	time.Sleep(500 * time.Millisecond)

	log := f.activityLog()
	if strings.Contains(log, "notes.swp") || strings.Contains(log, "tmp.txt") {
		t.Errorf("ignored files were backed up:\n%s", log)
	}
}

func TestWorkerApp_PeriodicMode(t *testing.T) {
	f := newWorkerFixture(t, "periodic", 0.2, "$top_folder-$count")
	f.cfg.Catalog = config.CatalogConfig{Type: "none"}

	old := filepath.Join(f.src, "old.txt")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	stop := f.start(t)
	// file mtimes come from a coarse kernel clock; stay clear of the first boundary
	time.Sleep(50 * time.Millisecond)

	// stage outside the tree so a scan never sees a half-written file
	content := []byte("scanned")
	staged := filepath.Join(t.TempDir(), "c.txt")
	if err := os.WriteFile(staged, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staged, filepath.Join(f.src, "c.txt")); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(f.backup, "Root", "Root-1", "c.txt")
	eventually(t, "backup of c.txt", func() bool { return fileEquals(dest, content) })
	eventually(t, "scan summary", func() bool {
		return strings.Contains(f.activityLog(), "Interval Scan: Backed up 1 files.")
	})

	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	log := f.activityLog()
	if !strings.Contains(log, "--- MODE: PERIODIC SCAN (Every 0.2s) ---") {
		t.Errorf("activity log missing periodic mode line:\n%s", log)
	}
	if strings.Contains(log, "old.txt") {
		t.Errorf("file untouched since startup was backed up:\n%s", log)
	}
}

func TestWorkerApp_UnwritableDestinationKeepsRunning(t *testing.T) {
	f := newWorkerFixture(t, "event", 0.2, "$top_folder-$count")
	f.cfg.Catalog = config.CatalogConfig{Type: "none"}
	// a file where the top folder should be makes every Root backup fail
	if err := os.MkdirAll(f.backup, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.backup, "Root"), []byte("blocker"), 0o644); err != nil {
		t.Fatal(err)
	}
	stop := f.start(t)

	for i, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(f.src, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		want := i + 1
		eventually(t, "failure line for "+name, func() bool {
			return strings.Count(f.activityLog(), " - ERROR creating dir: ") >= want
		})
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(f.activityLog(), "Backup Success") {
		t.Errorf("unexpected success:\n%s", f.activityLog())
	}
}

func TestWorkerApp_WatcherFailure(t *testing.T) {
	f := newWorkerFixture(t, "event", 1, bt.DefaultFormat)
	f.cfg.Catalog = config.CatalogConfig{Type: "none"}
	f.cfg.SourceDir = filepath.Join(t.TempDir(), "does-not-exist")

	a, err := NewWorkerApp(f.cfg)
	if err != nil {
		t.Fatalf("NewWorkerApp() error = %v", err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for missing source directory")
	}
	if !strings.Contains(f.activityLog(), " - Error starting watcher: ") {
		t.Errorf("activity log missing watcher error:\n%s", f.activityLog())
	}
}

func TestNewWorkerApp_NotConfigured(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())

	_, err := NewWorkerApp(cfg)
	if !errors.Is(err, bt.ErrNotConfigured) {
		t.Errorf("NewWorkerApp() error = %v, want ErrNotConfigured", err)
	}
}

func TestHistoryApp_Recent(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Catalog = config.CatalogConfig{Type: "none"}

	h, err := NewHistoryApp(cfg)
	if err != nil {
		t.Fatalf("NewHistoryApp() error = %v", err)
	}
	defer h.Close()

	recs, err := h.Recent(5)
	if err != nil || len(recs) != 0 {
		t.Errorf("Recent() = %v, %v, want empty", recs, err)
	}
	if _, err := h.Recent(0); err == nil {
		t.Error("Recent(0) expected error")
	}
}
