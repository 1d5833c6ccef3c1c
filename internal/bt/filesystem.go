package bt

import "io/fs"

// FilesystemManager provides the filesystem operations the worker needs.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// FindFiles discovers regular files anywhere under root.
	// Entries that cannot be read are skipped; an error is returned only
	// when root itself cannot be walked.
	FindFiles(root string) ([]*Path, error)

	// CountSubdirectories returns the number of immediate subdirectories of dir.
	// A missing dir counts as zero.
	CountSubdirectories(dir string) (int, error)

	// MkdirAll creates dir and any missing parents. Existing directories are not an error.
	MkdirAll(dir string) error

	// CopyFile copies the bytes of src to dst, replacing dst if it exists.
	CopyFile(src, dst string) error

	// IsIgnored reports whether path matches the configured ignore patterns,
	// evaluated relative to root.
	IsIgnored(path, root string) (bool, error)
}
