package bt_test

import (
	"testing"
	"time"

	"autobackup/internal/bt"
)

func TestFormatName(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 10, 30, 5, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		top      string
		source   string
		count    int
		want     string
	}{
		{"default format", bt.DefaultFormat, "Root", "/src/a.txt", 0, "Root-10-30-05-2024-01-15"},
		{"count is one based", "$top_folder-$count", "proj", "/src/proj/b.txt", 0, "proj-1"},
		{"count follows existing generations", "$count", "proj", "/src/proj/b.txt", 4, "5"},
		{"timestamp is not read as time", "$timestamp", "Root", "/src/a.txt", 0, "20240115_103005"},
		{"time next to literal text", "$timeX", "Root", "/src/a.txt", 0, "10-30-05X"},
		{"filename keeps extension", "$filename", "docs", "/src/docs/report.pdf", 0, "report.pdf"},
		{"name drops extension", "$name", "docs", "/src/docs/report.pdf", 0, "report"},
		{"name drops only last extension", "$name", "docs", "/src/docs/archive.tar.gz", 0, "archive.tar"},
		{"name of dotfile", "$name", "Root", "/src/.bashrc", 0, ".bashrc"},
		{"no tokens", "plain-folder", "Root", "/src/a.txt", 3, "plain-folder"},
		{"unknown token passes through", "$unknown-$date", "Root", "/src/a.txt", 0, "$unknown-2024-01-15"},
		{"bare dollar", "$", "Root", "/src/a.txt", 0, "$"},
		{"repeated token", "$count$count", "Root", "/src/a.txt", 2, "33"},
		{"substituted values are not rescanned", "$top_folder", "$date", "/src/$date/a.txt", 0, "$date"},
		{"forbidden characters are kept", "$date:$top_folder?", "Root", "/src/a.txt", 0, "2024-01-15:Root?"},
		{"empty template", "", "Root", "/src/a.txt", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := bt.FormatName(tt.template, tt.top, tt.source, tt.count, now)
			if got != tt.want {
				t.Errorf("FormatName(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestFormatName_Deterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	template := "$top_folder-$timestamp-$count-$name"

	first := bt.FormatName(template, "proj", "/src/proj/x.go", 7, now)
	for i := 0; i < 10; i++ {
		if got := bt.FormatName(template, "proj", "/src/proj/x.go", 7, now); got != first {
			t.Fatalf("FormatName() = %q on call %d, want %q", got, i, first)
		}
	}
	if first != "proj-20240115_103000-8-x" {
		t.Errorf("FormatName() = %q, want %q", first, "proj-20240115_103000-8-x")
	}
}
