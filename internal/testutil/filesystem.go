package testutil

import (
	"bytes"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"autobackup/internal/bt"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are used as given; tests should pass absolute, clean paths.
// Safe for concurrent use.
type MockFilesystemManager struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	ignored   map[string]bool
	mkdirErr  map[string]error
	copyErr   map[string]error
	findErr   error
	copies    []string
	defaultMT time.Time
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:     make(map[string]*MockFile),
		ignored:   make(map[string]bool),
		mkdirErr:  make(map[string]error),
		copyErr:   make(map[string]error),
		defaultMT: time.Now(),
	}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithModTime(path, content, m.defaultMT)
}

// AddFileWithModTime adds a file with the given modification time.
func (m *MockFilesystemManager) AddFileWithModTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path)
}

// Remove deletes a single entry.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Touch sets the modification time of an existing entry.
func (m *MockFilesystemManager) Touch(path string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok {
		f.ModTime = modTime
	}
}

// Ignore marks path as matching the ignore rules.
func (m *MockFilesystemManager) Ignore(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[path] = true
}

// FailMkdir makes MkdirAll fail for any directory at or below prefix.
func (m *MockFilesystemManager) FailMkdir(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirErr[prefix] = err
}

// FailCopy makes CopyFile fail when copying from src.
func (m *MockFilesystemManager) FailCopy(src string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copyErr[src] = err
}

// FailFindFiles makes FindFiles return err until cleared with nil.
func (m *MockFilesystemManager) FailFindFiles(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

// Content returns the bytes stored at path.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

// Exists reports whether any entry exists at path.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// Copies returns the destination of every successful CopyFile call, in order.
func (m *MockFilesystemManager) Copies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.copies...)
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return newMockFileInfo(path, f), nil
}

func (m *MockFilesystemManager) FindFiles(root string) ([]*bt.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if f, ok := m.files[root]; !ok || !f.IsDirectory {
		return nil, &fs.PathError{Op: "lstat", Path: root, Err: fs.ErrNotExist}
	}

	prefix := root + string(filepath.Separator)
	var paths []string
	for p, f := range m.files {
		if !f.IsDirectory && strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := make([]*bt.Path, 0, len(paths))
	for _, p := range paths {
		out = append(out, bt.NewPath(p, false, newMockFileInfo(p, m.files[p])))
	}
	return out, nil
}

func (m *MockFilesystemManager) CountSubdirectories(dir string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[dir]
	if !ok {
		return 0, nil
	}
	if !f.IsDirectory {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}

	count := 0
	for p, f := range m.files {
		if f.IsDirectory && p != dir && filepath.Dir(p) == dir {
			count++
		}
	}
	return count, nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, err := range m.mkdirErr {
		if dir == prefix || strings.HasPrefix(dir, prefix+string(filepath.Separator)) {
			return &fs.PathError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	if f, ok := m.files[dir]; ok && !f.IsDirectory {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrExist}
	}
	m.mkdirAllLocked(dir)
	return nil
}

func (m *MockFilesystemManager) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.copyErr[src]; ok {
		return &fs.PathError{Op: "open", Path: src, Err: err}
	}
	f, ok := m.files[src]
	if !ok || f.IsDirectory {
		return &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist}
	}
	if parent, ok := m.files[filepath.Dir(dst)]; !ok || !parent.IsDirectory {
		return &fs.PathError{Op: "create", Path: dst, Err: fs.ErrNotExist}
	}

	m.files[dst] = &MockFile{
		Content:     bytes.Clone(f.Content),
		Permissions: f.Permissions,
		ModTime:     f.ModTime,
	}
	m.copies = append(m.copies, dst)
	return nil
}

func (m *MockFilesystemManager) IsIgnored(path, root string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored[path], nil
}

func (m *MockFilesystemManager) mkdirAllLocked(dir string) {
	for d := dir; ; d = filepath.Dir(d) {
		if _, ok := m.files[d]; !ok {
			m.files[d] = &MockFile{Permissions: 0o755, ModTime: m.defaultMT, IsDirectory: true}
		}
		if parent := filepath.Dir(d); parent == d {
			return
		}
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ bt.FilesystemManager = (*MockFilesystemManager)(nil)
