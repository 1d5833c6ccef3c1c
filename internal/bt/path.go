package bt

import (
	"io/fs"
	"time"
)

// Path is a file discovered on disk together with the stat info captured
// when it was found. FilesystemManager.FindFiles produces these for scans.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

// String returns the absolute path as a string.
func (p *Path) String() string {
	return p.absPath
}

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info from when the path was discovered.
func (p *Path) Info() fs.FileInfo {
	return p.info
}

// ModTime returns the cached modification time, or the zero time if no info was captured.
func (p *Path) ModTime() time.Time {
	if p.info == nil {
		return time.Time{}
	}
	return p.info.ModTime()
}
