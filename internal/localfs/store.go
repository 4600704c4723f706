// Package localfs is the desktop local store: the diary and the monthly
// plans live in two JSON files, with a small metadata file recording the
// sync markers and a hash of the content they describe.
package localfs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/trustdev-org/calendar-diary/internal/models"
)

// File names inside the data directory.
const (
	EntriesFile = "calendar_data.json"
	PlansFile   = "calendar_plans.json"
	MetaFile    = "sync-meta.json"

	dirPerm  = fs.FileMode(0o700)
	filePerm = fs.FileMode(0o600)

	tempPattern = ".diary-write-*"
)

type meta struct {
	UpdatedAt   string    `json:"updatedAt"`
	ContentHash string    `json:"contentHash"`
	LastSync    time.Time `json:"lastSync"`
	LastBackup  time.Time `json:"lastBackup"`
}

// Store reads and writes the diary files in one directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Store{dir: dir, logger: logger, now: time.Now, rename: os.Rename}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Load returns both documents and the effective content marker. If the
// files were edited while no watcher was running, the stored marker no
// longer describes them; the newest file modification time is reported
// instead so the edit counts as a local change.
func (s *Store) Load() (models.LocalData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawEntries, rawPlans, err := s.readDocuments()
	if err != nil {
		return models.LocalData{}, err
	}

	data, err := decodeDocuments(rawEntries, rawPlans)
	if err != nil {
		return models.LocalData{}, err
	}

	m, err := s.readMeta()
	if err != nil {
		return models.LocalData{}, err
	}

	data.UpdatedAt = m.UpdatedAt

	if m.ContentHash != "" && m.ContentHash != contentHash(rawEntries, rawPlans) {
		data.UpdatedAt = s.driftMarker(m.UpdatedAt)
	}

	return data, nil
}

func decodeDocuments(rawEntries, rawPlans []byte) (models.LocalData, error) {
	data := models.LocalData{Entries: models.Entries{}, Plans: models.Plans{}}

	if rawEntries != nil {
		if err := json.Unmarshal(rawEntries, &data.Entries); err != nil {
			return models.LocalData{}, fmt.Errorf("decoding %s: %w", EntriesFile, err)
		}
	}

	if rawPlans != nil {
		if err := json.Unmarshal(rawPlans, &data.Plans); err != nil {
			return models.LocalData{}, fmt.Errorf("decoding %s: %w", PlansFile, err)
		}
	}

	if data.Entries == nil {
		data.Entries = models.Entries{}
	}

	if data.Plans == nil {
		data.Plans = models.Plans{}
	}

	return data, nil
}

// driftMarker returns the newest document mtime, never earlier than
// just after the stored marker.
func (s *Store) driftMarker(stored string) string {
	var newest time.Time

	for _, name := range []string{EntriesFile, PlansFile} {
		info, err := os.Stat(s.path(name))
		if err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}

	return models.FreshStamp(newest, stored)
}

// Save replaces both documents and records data.UpdatedAt as the marker
// for the new content. If the second document cannot be written the
// first is restored, so the pair never disagrees on disk.
func (s *Store) Save(data models.LocalData) error {
	entries := data.Entries
	if entries == nil {
		entries = models.Entries{}
	}

	plans := data.Plans
	if plans == nil {
		plans = models.Plans{}
	}

	rawEntries, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding diary entries: %w", err)
	}

	rawPlans, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding monthly plans: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldEntries, oldPlans, err := s.readDocuments()
	if err != nil {
		return err
	}

	m, err := s.readMeta()
	if err != nil {
		return err
	}

	if err := s.writeFile(EntriesFile, rawEntries); err != nil {
		return err
	}

	if err := s.writeFile(PlansFile, rawPlans); err != nil {
		s.restore(EntriesFile, oldEntries)
		return err
	}

	m.UpdatedAt = data.UpdatedAt
	m.ContentHash = contentHash(rawEntries, rawPlans)

	if err := s.writeMeta(m); err != nil {
		s.restore(EntriesFile, oldEntries)
		s.restore(PlansFile, oldPlans)
		return err
	}

	return nil
}

// restore puts back the previous content of a document after a failed
// save. A nil previous value means the file did not exist.
func (s *Store) restore(name string, previous []byte) {
	var err error
	if previous == nil {
		err = os.Remove(s.path(name))
	} else {
		err = s.writeFile(name, previous)
	}

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("rolling back local document",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
}

// SetUpdatedAt records ts as the marker for uploaded. If the files were
// edited after uploaded was loaded, the edit has not reached the remote;
// it is stamped strictly after ts so the next sync uploads it.
func (s *Store) SetUpdatedAt(ts string, uploaded models.LocalData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawEntries, rawPlans, err := s.readDocuments()
	if err != nil {
		return err
	}

	m, err := s.readMeta()
	if err != nil {
		return err
	}

	m.UpdatedAt = ts

	onDisk, err := decodeDocuments(rawEntries, rawPlans)
	if err != nil || !models.SameContent(onDisk, uploaded) {
		m.UpdatedAt = models.FreshStamp(s.now(), ts)
		s.logger.Warn("diary files changed during upload, keeping them as a local change",
			slog.String("updated_at", m.UpdatedAt),
		)
	}

	m.ContentHash = contentHash(rawEntries, rawPlans)

	return s.writeMeta(m)
}

// Markers returns the stored markers.
func (s *Store) Markers() (models.Markers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readMeta()
	if err != nil {
		return models.Markers{}, err
	}

	return models.Markers{UpdatedAt: m.UpdatedAt, LastSync: m.LastSync, LastBackup: m.LastBackup}, nil
}

// SetLastSync records when a sync last completed.
func (s *Store) SetLastSync(t time.Time) error {
	return s.updateMeta(func(m *meta) { m.LastSync = t.UTC() })
}

// SetLastBackup records when a backup was last created.
func (s *Store) SetLastBackup(t time.Time) error {
	return s.updateMeta(func(m *meta) { m.LastBackup = t.UTC() })
}

func (s *Store) updateMeta(fn func(*meta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readMeta()
	if err != nil {
		return err
	}

	fn(&m)

	return s.writeMeta(m)
}

// readDocuments returns the raw bytes of both documents; a missing file
// yields nil.
func (s *Store) readDocuments() ([]byte, []byte, error) {
	rawEntries, err := readOptional(s.path(EntriesFile))
	if err != nil {
		return nil, nil, err
	}

	rawPlans, err := readOptional(s.path(PlansFile))
	if err != nil {
		return nil, nil, err
	}

	return rawEntries, rawPlans, nil
}

func (s *Store) readMeta() (meta, error) {
	var m meta

	raw, err := readOptional(s.path(MetaFile))
	if err != nil || raw == nil {
		return m, err
	}

	if err := json.Unmarshal(raw, &m); err != nil {
		return meta{}, fmt.Errorf("decoding %s: %w", MetaFile, err)
	}

	return m, nil
}

func (s *Store) writeMeta(m meta) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync metadata: %w", err)
	}

	return s.writeFile(MetaFile, raw)
}

// writeFile replaces a file atomically: write a temp file in the same
// directory, then rename it over the target.
func (s *Store) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := s.rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

func readOptional(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	return raw, nil
}

// contentHash identifies the pair of documents. A missing file hashes
// differently from an empty one.
func contentHash(entries, plans []byte) string {
	h := sha256.New()

	for _, doc := range [][]byte{entries, plans} {
		if doc == nil {
			h.Write([]byte{0})
			continue
		}

		h.Write([]byte{1})
		h.Write(doc)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
