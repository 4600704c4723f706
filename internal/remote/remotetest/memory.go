// Package remotetest provides an in-memory remote store for tests.
package remotetest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

type file struct {
	data    []byte
	modTime time.Time
}

// Memory is a goroutine-safe in-memory remote store. Directories must be
// created with Mkdir before files can be written beneath them, matching a
// WebDAV server.
type Memory struct {
	mu    sync.Mutex
	files map[string]file
	dirs  map[string]bool
	fail  map[string]error
	calls map[string]int

	// Now stamps modification times. Defaults to time.Now.
	Now func() time.Time
}

// NewMemory returns an empty store whose root directory exists.
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string]file),
		dirs:  map[string]bool{"": true},
		fail:  make(map[string]error),
		calls: make(map[string]int),
		Now:   time.Now,
	}
}

func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}

	return d
}

// FailOn makes every call to op ("stat", "read", "write", "list",
// "delete", "mkdir") return err. A nil err clears the failure.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.fail, op)
		return
	}

	m.fail[op] = err
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[op]
}

// Put stores a file directly, creating parent directories.
func (m *Memory) Put(p string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	for d := parent(p); d != ""; d = parent(d) {
		m.dirs[d] = true
	}

	m.files[p] = file{data: append([]byte(nil), data...), modTime: modTime}
}

// Get returns a stored file's content.
func (m *Memory) Get(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[clean(p)]
	if !ok {
		return nil, false
	}

	return append([]byte(nil), f.data...), true
}

// HasDir reports whether a directory exists.
func (m *Memory) HasDir(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dirs[clean(p)]
}

// Files returns the sorted paths of all stored files.
func (m *Memory) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}

	sort.Strings(out)

	return out
}

func (m *Memory) enter(ctx context.Context, op string) error {
	m.calls[op]++

	if err := ctx.Err(); err != nil {
		return err
	}

	return m.fail[op]
}

// Stat implements remote.Store.
func (m *Memory) Stat(ctx context.Context, p string) (models.RemoteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "stat"); err != nil {
		return models.RemoteEntry{}, err
	}

	p = clean(p)
	if m.dirs[p] {
		return models.RemoteEntry{Path: p, Name: path.Base(p), IsDir: true}, nil
	}

	f, ok := m.files[p]
	if !ok {
		return models.RemoteEntry{}, fmt.Errorf("stat %s: %w", p, errs.ErrNotFound)
	}

	return models.RemoteEntry{Path: p, Name: path.Base(p), Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

// Read implements remote.Store.
func (m *Memory) Read(ctx context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "read"); err != nil {
		return nil, err
	}

	f, ok := m.files[clean(p)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, errs.ErrNotFound)
	}

	return append([]byte(nil), f.data...), nil
}

// Write implements remote.Store.
func (m *Memory) Write(ctx context.Context, p string, data []byte, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "write"); err != nil {
		return err
	}

	p = clean(p)
	if !m.dirs[parent(p)] {
		return fmt.Errorf("write %s: parent collection missing (409 Conflict)", p)
	}

	if _, exists := m.files[p]; exists && !overwrite {
		return fmt.Errorf("write %s: %w", p, errs.ErrWriteConflict)
	}

	m.files[p] = file{data: append([]byte(nil), data...), modTime: m.Now()}

	return nil
}

// List implements remote.Store.
func (m *Memory) List(ctx context.Context, dir string) ([]models.RemoteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "list"); err != nil {
		return nil, err
	}

	dir = clean(dir)
	if !m.dirs[dir] {
		return nil, fmt.Errorf("list %s: %w", dir, errs.ErrNotFound)
	}

	var entries []models.RemoteEntry

	for d := range m.dirs {
		if d != "" && d != dir && parent(d) == dir {
			entries = append(entries, models.RemoteEntry{Path: d, Name: path.Base(d), IsDir: true})
		}
	}

	for p, f := range m.files {
		if parent(p) == dir {
			entries = append(entries, models.RemoteEntry{
				Path:    p,
				Name:    path.Base(p),
				Size:    int64(len(f.data)),
				ModTime: f.modTime,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

// Delete implements remote.Store.
func (m *Memory) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "delete"); err != nil {
		return err
	}

	p = clean(p)
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("delete %s: %w", p, errs.ErrNotFound)
	}

	delete(m.files, p)

	return nil
}

// Mkdir implements remote.Store.
func (m *Memory) Mkdir(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "mkdir"); err != nil {
		return err
	}

	p = clean(p)
	if !m.dirs[parent(p)] {
		return fmt.Errorf("mkdir %s: parent collection missing (409 Conflict)", p)
	}

	m.dirs[p] = true

	return nil
}
