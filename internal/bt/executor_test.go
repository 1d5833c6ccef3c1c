package bt_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"autobackup/internal/bt"
	"autobackup/internal/database"
	"autobackup/internal/testutil"
)

type executorFixture struct {
	fsmgr    *testutil.MockFilesystemManager
	activity *testutil.MemoryActivityLog
	catalog  *database.SQLiteCatalog
	clock    *testutil.StubClock
	executor *bt.BackupExecutor
}

func newExecutorFixture(t *testing.T, settings bt.Settings) *executorFixture {
	t.Helper()

	f := &executorFixture{
		fsmgr:    testutil.NewMockFilesystemManager(),
		activity: testutil.NewMemoryActivityLog(),
		catalog:  testutil.NewTestCatalog(t),
		clock:    testutil.FixedClock(),
	}
	run := &bt.WorkerRun{ID: "run-1", Mode: settings.Mode, SourceDir: settings.SourceDir, BackupDir: settings.BackupDir, StartedAt: f.clock.Now()}
	if err := f.catalog.StartRun(run); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	f.executor = bt.NewBackupExecutor(settings, f.fsmgr, f.activity, f.catalog, bt.NewNopLogger(), f.clock, "run-1")
	return f
}

func testSettings(format string) bt.Settings {
	return bt.Settings{
		SourceDir: "/src",
		BackupDir: "/backup",
		Mode:      bt.ModeEvent,
		TimeValue: time.Second,
		Format:    format,
	}
}

func TestBackupExecutor_Execute(t *testing.T) {
	t.Parallel()

	t.Run("copies file into a new generation", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$top_folder-$count"))
		f.fsmgr.AddFile("/src/a.txt", []byte("hello"))

		if got := f.executor.Execute("/src/a.txt"); got != bt.OutcomeSuccess {
			t.Fatalf("Execute() = %v, want %v", got, bt.OutcomeSuccess)
		}

		content, ok := f.fsmgr.Content("/backup/Root/Root-1/a.txt")
		if !ok || string(content) != "hello" {
			t.Errorf("backup content = %q (exists=%v), want %q", content, ok, "hello")
		}

		want := "Backup Success: /src/a.txt -> /backup/Root/Root-1/a.txt"
		if got := f.activity.Messages(); len(got) != 1 || got[0] != want {
			t.Errorf("activity = %v, want [%s]", got, want)
		}

		recs, err := f.catalog.ListBackups(10)
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(recs) != 1 || recs[0].Outcome != bt.OutcomeSuccess || recs[0].DestPath != "/backup/Root/Root-1/a.txt" {
			t.Errorf("catalog records = %+v, want one success", recs)
		}
	})

	t.Run("nested file keeps its middle path", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$top_folder-$date"))
		f.fsmgr.AddFile("/src/proj/sub/b.txt", []byte("b"))

		if got := f.executor.Execute("/src/proj/sub/b.txt"); got != bt.OutcomeSuccess {
			t.Fatalf("Execute() = %v, want %v", got, bt.OutcomeSuccess)
		}
		if !f.fsmgr.Exists("/backup/proj/proj-2024-01-15/sub/b.txt") {
			t.Error("expected /backup/proj/proj-2024-01-15/sub/b.txt to exist")
		}
	})

	t.Run("count based format starts a generation per backup", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$top_folder-$count"))
		f.fsmgr.AddFile("/src/proj/a.txt", []byte("a"))
		f.fsmgr.AddFile("/src/proj/b.txt", []byte("b"))

		f.executor.Execute("/src/proj/a.txt")
		f.executor.Execute("/src/proj/b.txt")

		for _, p := range []string{"/backup/proj/proj-1/a.txt", "/backup/proj/proj-2/b.txt"} {
			if !f.fsmgr.Exists(p) {
				t.Errorf("expected %s to exist", p)
			}
		}
	})

	t.Run("second run into the same generation overwrites", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$top_folder-$date"))
		f.fsmgr.AddFile("/src/a.txt", []byte("v1"))

		for i := 0; i < 2; i++ {
			if got := f.executor.Execute("/src/a.txt"); got != bt.OutcomeSuccess {
				t.Fatalf("Execute() run %d = %v, want %v", i+1, got, bt.OutcomeSuccess)
			}
		}

		n, err := f.fsmgr.CountSubdirectories("/backup/Root")
		if err != nil {
			t.Fatalf("CountSubdirectories() error = %v", err)
		}
		if n != 1 {
			t.Errorf("generation folders = %d, want 1", n)
		}
		if got := len(f.fsmgr.Copies()); got != 2 {
			t.Errorf("copies = %d, want 2", got)
		}
	})

	t.Run("vanished source is skipped silently", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))

		if got := f.executor.Execute("/src/gone.txt"); got != bt.OutcomeSkipped {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSkipped)
		}
		assertNoTrace(t, f)
	})

	t.Run("directory is skipped", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddDirectory("/src/proj")

		if got := f.executor.Execute("/src/proj"); got != bt.OutcomeSkipped {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSkipped)
		}
		assertNoTrace(t, f)
	})

	t.Run("path outside the watched root is skipped", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddFile("/elsewhere/a.txt", []byte("a"))

		if got := f.executor.Execute("/elsewhere/a.txt"); got != bt.OutcomeSkipped {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSkipped)
		}
		assertNoTrace(t, f)
	})

	t.Run("backup tree nested in source is skipped", func(t *testing.T) {
		t.Parallel()
		settings := testSettings("$count")
		settings.BackupDir = "/src/.backup"
		f := newExecutorFixture(t, settings)
		f.fsmgr.AddFile("/src/.backup/Root/1/a.txt", []byte("a"))

		if got := f.executor.Execute("/src/.backup/Root/1/a.txt"); got != bt.OutcomeSkipped {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSkipped)
		}
		if len(f.fsmgr.Copies()) != 0 || len(f.activity.Messages()) != 0 {
			t.Error("expected no copies and no activity")
		}
	})

	t.Run("ignored path is skipped", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddFile("/src/a.swp", []byte("a"))
		f.fsmgr.Ignore("/src/a.swp")

		if got := f.executor.Execute("/src/a.swp"); got != bt.OutcomeSkipped {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSkipped)
		}
		assertNoTrace(t, f)
	})

	t.Run("directory creation failure", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddFile("/src/a.txt", []byte("a"))
		f.fsmgr.FailMkdir("/backup", errors.New("permission denied"))

		if got := f.executor.Execute("/src/a.txt"); got != bt.OutcomeDirCreateError {
			t.Fatalf("Execute() = %v, want %v", got, bt.OutcomeDirCreateError)
		}
		logged := f.activity.Messages()
		if len(logged) != 1 || !strings.HasPrefix(logged[0], "ERROR creating dir: ") || !strings.Contains(logged[0], "permission denied") {
			t.Errorf("activity = %v, want one ERROR creating dir line", logged)
		}

		recs, _ := f.catalog.ListBackups(10)
		if len(recs) != 1 || recs[0].Outcome != bt.OutcomeDirCreateError || !strings.Contains(recs[0].Error, "permission denied") {
			t.Errorf("catalog records = %+v, want one dir_create_error", recs)
		}
	})

	t.Run("copy failure", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddFile("/src/a.txt", []byte("a"))
		f.fsmgr.FailCopy("/src/a.txt", errors.New("input/output error"))

		if got := f.executor.Execute("/src/a.txt"); got != bt.OutcomeCopyError {
			t.Fatalf("Execute() = %v, want %v", got, bt.OutcomeCopyError)
		}
		logged := f.activity.WithPrefix("ERROR copy: ")
		if len(logged) != 1 || !strings.Contains(logged[0], "input/output error") {
			t.Errorf("activity = %v, want one ERROR copy line", f.activity.Messages())
		}
	})

	t.Run("activity log failure does not change the outcome", func(t *testing.T) {
		t.Parallel()
		f := newExecutorFixture(t, testSettings("$count"))
		f.fsmgr.AddFile("/src/a.txt", []byte("a"))
		f.activity.FailWith(errors.New("disk full"))

		if got := f.executor.Execute("/src/a.txt"); got != bt.OutcomeSuccess {
			t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSuccess)
		}
	})
}

func TestBackupExecutor_CatalogFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/src/a.txt", []byte("a"))
	activity := testutil.NewMemoryActivityLog()
	catalog := testutil.NewTestCatalog(t)

	// no StartRun, so every record violates the run foreign key
	executor := bt.NewBackupExecutor(testSettings("$count"), fsmgr, activity, catalog, bt.NewNopLogger(), testutil.FixedClock(), "unregistered")

	if got := executor.Execute("/src/a.txt"); got != bt.OutcomeSuccess {
		t.Errorf("Execute() = %v, want %v", got, bt.OutcomeSuccess)
	}
	if len(activity.WithPrefix("Backup Success: ")) != 1 {
		t.Errorf("activity = %v, want one success line", activity.Messages())
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	for _, o := range []bt.Outcome{bt.OutcomeSkipped, bt.OutcomeSuccess, bt.OutcomeDirCreateError, bt.OutcomeCopyError} {
		parsed, err := bt.ParseOutcome(o.String())
		if err != nil || parsed != o {
			t.Errorf("ParseOutcome(%q) = %v, %v, want %v", o.String(), parsed, err, o)
		}
	}
	if _, err := bt.ParseOutcome("exploded"); err == nil {
		t.Error("ParseOutcome(unknown) expected error, got nil")
	}
}

// assertNoTrace checks that a skipped execution wrote nothing anywhere.
func assertNoTrace(t *testing.T, f *executorFixture) {
	t.Helper()
	if f.fsmgr.Exists("/backup") {
		t.Error("backup directory was created")
	}
	if got := f.activity.Messages(); len(got) != 0 {
		t.Errorf("activity = %v, want none", got)
	}
	if recs, _ := f.catalog.ListBackups(10); len(recs) != 0 {
		t.Errorf("catalog records = %d, want none", len(recs))
	}
}
