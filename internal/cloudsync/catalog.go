package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
)

// Catalog manages the write-once backup snapshots under the remote
// backups directory.
type Catalog struct {
	store remote.Store
	now   func() time.Time
}

// NewCatalog returns a catalog over store. now names new snapshots and
// defaults to time.Now.
func NewCatalog(store remote.Store, now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}

	return &Catalog{store: store, now: now}
}

// Create writes doc as a new snapshot and returns its filename. It never
// overwrites: a name collision fails with errors.ErrWriteConflict.
func (c *Catalog) Create(ctx context.Context, doc models.Document) (string, error) {
	raw, err := EncodeDocument(doc)
	if err != nil {
		return "", err
	}

	if err := ensureDir(ctx, c.store, remote.BackupsDir); err != nil {
		return "", err
	}

	name := remote.BackupName(c.now())
	if err := c.store.Write(ctx, remote.BackupPath(name), raw, false); err != nil {
		return "", fmt.Errorf("creating backup %s: %w", name, err)
	}

	return name, nil
}

// List returns the snapshots newest first by modification time. A
// missing backups directory is an empty catalog.
func (c *Catalog) List(ctx context.Context) ([]models.Backup, error) {
	entries, err := c.store.List(ctx, remote.BackupsDir)
	if errors.Is(err, errs.ErrNotFound) {
		return []models.Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	backups := make([]models.Backup, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !remote.IsBackupName(e.Name) {
			continue
		}

		backups = append(backups, models.Backup{
			Filename:     e.Name,
			Path:         remote.BackupPath(e.Name),
			LastModified: e.ModTime,
			SizeBytes:    e.Size,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		a, b := backups[i], backups[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Filename > b.Filename
	})

	return backups, nil
}

// Restore reads and validates a snapshot. It does not touch local
// content; applying the result is the caller's decision.
func (c *Catalog) Restore(ctx context.Context, filename string) (models.Document, error) {
	if !remote.IsBackupName(filename) {
		return models.Document{}, fmt.Errorf("%w: %q", errs.ErrInvalidBackupName, filename)
	}

	raw, err := c.store.Read(ctx, remote.BackupPath(filename))
	if err != nil {
		return models.Document{}, fmt.Errorf("reading backup %s: %w", filename, err)
	}

	doc, err := DecodeDocument(raw)
	if err != nil {
		return models.Document{}, fmt.Errorf("backup %s: %w", filename, err)
	}

	return doc, nil
}

// Delete removes a snapshot. Confirmation is the caller's job.
func (c *Catalog) Delete(ctx context.Context, filename string) error {
	if !remote.IsBackupName(filename) {
		return fmt.Errorf("%w: %q", errs.ErrInvalidBackupName, filename)
	}

	if err := c.store.Delete(ctx, remote.BackupPath(filename)); err != nil {
		return fmt.Errorf("deleting backup %s: %w", filename, err)
	}

	return nil
}

// ensureDir creates dir if the store reports it missing.
func ensureDir(ctx context.Context, store remote.Store, dir string) error {
	_, err := store.Stat(ctx, dir)
	if err == nil {
		return nil
	}

	if !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("checking %q: %w", dir, err)
	}

	if err := store.Mkdir(ctx, dir); err != nil {
		return fmt.Errorf("creating %q: %w", dir, err)
	}

	return nil
}
