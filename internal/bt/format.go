package bt

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultFormat is the snapshot folder template used when none is configured.
const DefaultFormat = "$top_folder-$time-$date"

// FormatName expands a snapshot folder template.
//
// Recognized tokens:
//
//	$date       2006-01-02
//	$time       15-04-05
//	$timestamp  20060102_150405
//	$count      count+1
//	$top_folder topFolder
//	$filename   base name of sourcePath
//	$name       base name of sourcePath without its extension
//
// At each '$' the longest matching token wins, so "$timestamp" is never read
// as "$time" followed by "stamp". Substituted values are not rescanned.
// Unknown tokens are left as they are. The result may contain characters
// that are not valid in a folder name; validation belongs to whoever saves
// the template.
func FormatName(template, topFolder, sourcePath string, count int, now time.Time) string {
	filename := filepath.Base(sourcePath)
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if name == "" {
		// dotfiles like ".bashrc" have no separate extension
		name = filename
	}

	// strings.Replacer compares candidates in argument order at each
	// position, so longer tokens that share a prefix must come first.
	r := strings.NewReplacer(
		"$top_folder", topFolder,
		"$timestamp", now.Format("20060102_150405"),
		"$filename", filename,
		"$count", strconv.Itoa(count+1),
		"$date", now.Format("2006-01-02"),
		"$time", now.Format("15-04-05"),
		"$name", name,
	)
	return r.Replace(template)
}
