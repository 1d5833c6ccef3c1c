package bt

import (
	"path/filepath"
	"strings"
)

// RootFolder is the top folder assigned to files that sit directly in the watched root.
const RootFolder = "Root"

// BackupTarget is where one source file is copied to. It is derived fresh for
// every backup from the source path and the current contents of the backup tree.
type BackupTarget struct {
	TopFolder     string
	Middle        string
	SnapshotName  string
	SequenceCount int
	DestDir       string
	DestFile      string
}

// PathResolver maps a changed source file to its place in the backup tree:
//
//	<backupRoot>/<top folder>/<snapshot name>/<middle...>/<filename>
type PathResolver struct {
	watchedRoot string
	backupRoot  string
	format      string
	fsmgr       FilesystemManager
	clock       Clock
}

// NewPathResolver creates a PathResolver. Both roots should be absolute.
func NewPathResolver(watchedRoot, backupRoot, format string, fsmgr FilesystemManager, clock Clock) *PathResolver {
	return &PathResolver{
		watchedRoot: filepath.Clean(watchedRoot),
		backupRoot:  filepath.Clean(backupRoot),
		format:      format,
		fsmgr:       fsmgr,
		clock:       clock,
	}
}

// Split decomposes sourcePath relative to the watched root into its top
// folder and middle path. ok is false when the path is not strictly inside
// the watched root or lies inside the backup root.
func (r *PathResolver) Split(sourcePath string) (topFolder, middle string, ok bool) {
	rel, inside := relativeTo(r.watchedRoot, sourcePath)
	if !inside {
		return "", "", false
	}
	if _, nested := relativeTo(r.backupRoot, sourcePath); nested {
		return "", "", false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 1 {
		return RootFolder, "", true
	}
	return parts[0], filepath.Join(parts[1 : len(parts)-1]...), true
}

// Resolve computes the destination for sourcePath. ok is false when the path
// must be skipped silently (outside the watched root or inside the backup root).
//
// The sequence count is the number of generation folders that already exist
// under <backupRoot>/<top folder>, read at call time. Callers that run
// resolutions concurrently for the same top folder race on that count.
// An unreadable top folder counts as zero; creating or copying into it will
// report the underlying problem.
func (r *PathResolver) Resolve(sourcePath string) (*BackupTarget, bool) {
	top, middle, ok := r.Split(sourcePath)
	if !ok {
		return nil, false
	}

	topDir := filepath.Join(r.backupRoot, top)
	count, err := r.fsmgr.CountSubdirectories(topDir)
	if err != nil {
		count = 0
	}

	snapshot := FormatName(r.format, top, sourcePath, count, r.clock.Now())
	destDir := filepath.Join(topDir, snapshot, middle)

	return &BackupTarget{
		TopFolder:     top,
		Middle:        middle,
		SnapshotName:  snapshot,
		SequenceCount: count,
		DestDir:       destDir,
		DestFile:      filepath.Join(destDir, filepath.Base(sourcePath)),
	}, true
}

// relativeTo returns path relative to root and whether path is strictly below root.
func relativeTo(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	return rel, true
}
