// Package remote implements the blob stores that hold the live sync
// document and the backup snapshots. Every store speaks paths relative to
// its configured root and reports a missing file as errors.ErrNotFound.
package remote

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/trustdev-org/calendar-diary/internal/models"
)

// Remote layout, relative to the configured root.
const (
	DataDir    = "data"
	BackupsDir = "backups"
	DataPath   = DataDir + "/current.json"

	backupPrefix     = "backup-"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102-150405"
)

// Store is a key-path blob store. Implementations must map a missing
// path to errors.ErrNotFound and a refused create-only write to
// errors.ErrWriteConflict.
type Store interface {
	Stat(ctx context.Context, p string) (models.RemoteEntry, error)
	Read(ctx context.Context, p string) ([]byte, error)
	Write(ctx context.Context, p string, data []byte, overwrite bool) error
	List(ctx context.Context, dir string) ([]models.RemoteEntry, error)
	Delete(ctx context.Context, p string) error
	Mkdir(ctx context.Context, p string) error
}

// BackupName returns the snapshot filename for the given instant, for
// example backup-20250131-235959.json. Names sort lexicographically by
// creation time.
func BackupName(t time.Time) string {
	return backupPrefix + t.UTC().Format(backupTimeLayout) + backupSuffix
}

// BackupPath returns the store path of a snapshot filename.
func BackupPath(name string) string {
	return path.Join(BackupsDir, name)
}

// IsBackupName reports whether name is a plain snapshot filename. Names
// containing separators or parent references are rejected so a caller
// cannot reach outside the backups directory.
func IsBackupName(name string) bool {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return false
	}

	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}

	return len(name) > len(backupPrefix)+len(backupSuffix)
}

// clean normalizes a relative store path: no leading or trailing slash.
func clean(p string) string {
	p = strings.Trim(path.Clean("/"+p), "/")
	return p
}
