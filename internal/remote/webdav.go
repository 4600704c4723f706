package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/studio-b12/gowebdav"
	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// DefaultRootPath is the directory created on the WebDAV server when no
// root is configured.
const DefaultRootPath = "/CalendarDiary"

// WebDAVConfig holds the connection settings for a WebDAV server.
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	RootPath string
	Timeout  time.Duration
}

// WebDAV is a Store backed by a WebDAV server.
type WebDAV struct {
	client *gowebdav.Client
	root   string
}

var _ Store = (*WebDAV)(nil)

// NewWebDAV creates a WebDAV store. No request is made until the first
// operation.
func NewWebDAV(cfg WebDAVConfig) *WebDAV {
	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	root := cfg.RootPath
	if root == "" {
		root = DefaultRootPath
	}

	return &WebDAV{
		client: client,
		root:   path.Clean("/" + root),
	}
}

func (w *WebDAV) full(p string) string {
	return path.Join(w.root, clean(p))
}

// Stat returns metadata for a file or directory.
func (w *WebDAV) Stat(ctx context.Context, p string) (models.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.RemoteEntry{}, err
	}

	info, err := w.client.Stat(w.full(p))
	if err != nil {
		return models.RemoteEntry{}, mapWebDAVError("stat", p, err)
	}

	entry := entryFromInfo("", info)
	entry.Path = clean(p)

	return entry, nil
}

// Read returns the content of a file.
func (w *WebDAV) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := w.client.Read(w.full(p))
	if err != nil {
		return nil, mapWebDAVError("read", p, err)
	}

	return data, nil
}

// Write stores data at p. With overwrite false the file must not exist.
// WebDAV offers no portable create-only PUT, so the check is a stat
// before the write. Callers serialize operations, which keeps the window
// to concurrent writers from other devices.
func (w *WebDAV) Write(ctx context.Context, p string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !overwrite {
		_, err := w.client.Stat(w.full(p))
		if err == nil {
			return fmt.Errorf("write %s: %w", p, errs.ErrWriteConflict)
		}

		if !isWebDAVNotFound(err) {
			return mapWebDAVError("write", p, err)
		}
	}

	if err := w.client.Write(w.full(p), data, 0o644); err != nil {
		return mapWebDAVError("write", p, err)
	}

	return nil
}

// List returns the direct children of dir.
func (w *WebDAV) List(ctx context.Context, dir string) ([]models.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := w.client.ReadDir(w.full(dir))
	if err != nil {
		return nil, mapWebDAVError("list", dir, err)
	}

	entries := make([]models.RemoteEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, entryFromInfo(clean(dir), info))
	}

	return entries, nil
}

// Delete removes a file.
func (w *WebDAV) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.client.Remove(w.full(p)); err != nil {
		return mapWebDAVError("delete", p, err)
	}

	return nil
}

// Mkdir creates a single collection.
func (w *WebDAV) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.client.Mkdir(w.full(p), 0o755); err != nil {
		return mapWebDAVError("mkdir", p, err)
	}

	return nil
}

func entryFromInfo(dir string, info os.FileInfo) models.RemoteEntry {
	return models.RemoteEntry{
		Path:    clean(path.Join(dir, info.Name())),
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func isWebDAVNotFound(err error) bool {
	return gowebdav.IsErrNotFound(err) || errors.Is(err, fs.ErrNotExist)
}

func mapWebDAVError(op, p string, err error) error {
	if isWebDAVNotFound(err) {
		return fmt.Errorf("%s %s: %w", op, p, errs.ErrNotFound)
	}

	return fmt.Errorf("%s %s: %w", op, p, err)
}
