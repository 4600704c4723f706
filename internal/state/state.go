// Package state is the key-value local store: both diary documents, the
// sync markers and the saved remote settings live in one bbolt file.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/trustdev-org/calendar-diary/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the data directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// The file holds the WebDAV password when settings are saved.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second

	// FileName is the database file name inside the data directory.
	FileName = "state.db"
)

var (
	diaryBucket    = []byte("diary")
	settingsBucket = []byte("settings")

	entriesKey    = []byte("calendar_data")
	plansKey      = []byte("calendar_plans")
	updatedAtKey  = []byte("data_updated_at")
	lastSyncKey   = []byte("last_sync")
	lastBackupKey = []byte("last_backup")
	webdavKey     = []byte("webdav")
)

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(diaryBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(settingsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Load returns both diary documents and the content marker. Missing
// documents come back as empty maps.
func (s *State) Load() (models.LocalData, error) {
	data := models.LocalData{
		Entries: models.Entries{},
		Plans:   models.Plans{},
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(diaryBucket)

		if v := b.Get(entriesKey); v != nil {
			if err := json.Unmarshal(v, &data.Entries); err != nil {
				return fmt.Errorf("decoding diary entries: %w", err)
			}
		}

		if v := b.Get(plansKey); v != nil {
			if err := json.Unmarshal(v, &data.Plans); err != nil {
				return fmt.Errorf("decoding monthly plans: %w", err)
			}
		}

		data.UpdatedAt = string(b.Get(updatedAtKey))

		return nil
	})
	if err != nil {
		return models.LocalData{}, err
	}

	if data.Entries == nil {
		data.Entries = models.Entries{}
	}

	if data.Plans == nil {
		data.Plans = models.Plans{}
	}

	return data, nil
}

// Save replaces both documents and the content marker in one
// transaction, so either all three change or none do.
func (s *State) Save(data models.LocalData) error {
	entries, err := json.Marshal(nonNilEntries(data.Entries))
	if err != nil {
		return fmt.Errorf("encoding diary entries: %w", err)
	}

	plans, err := json.Marshal(nonNilPlans(data.Plans))
	if err != nil {
		return fmt.Errorf("encoding monthly plans: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(diaryBucket)

		if err := b.Put(entriesKey, entries); err != nil {
			return err
		}

		if err := b.Put(plansKey, plans); err != nil {
			return err
		}

		return b.Put(updatedAtKey, []byte(data.UpdatedAt))
	})
}

// SetUpdatedAt records ts as the marker for uploaded. Documents saved
// after uploaded was loaded are stamped strictly after ts instead, so
// they still count as a local change.
func (s *State) SetUpdatedAt(ts string, uploaded models.LocalData) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(diaryBucket)

		stored := models.LocalData{}
		if v := b.Get(entriesKey); v != nil {
			if err := json.Unmarshal(v, &stored.Entries); err != nil {
				return fmt.Errorf("decoding diary entries: %w", err)
			}
		}

		if v := b.Get(plansKey); v != nil {
			if err := json.Unmarshal(v, &stored.Plans); err != nil {
				return fmt.Errorf("decoding monthly plans: %w", err)
			}
		}

		if !models.SameContent(stored, uploaded) {
			ts = models.FreshStamp(time.Now(), ts)
		}

		return b.Put(updatedAtKey, []byte(ts))
	})
}

// Markers returns the content marker and the last sync and backup times.
func (s *State) Markers() (models.Markers, error) {
	var m models.Markers

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(diaryBucket)
		m.UpdatedAt = string(b.Get(updatedAtKey))
		m.LastSync = parseTime(b.Get(lastSyncKey))
		m.LastBackup = parseTime(b.Get(lastBackupKey))

		return nil
	})

	return m, err
}

// SetLastSync records when a sync last completed.
func (s *State) SetLastSync(t time.Time) error {
	return s.putTime(lastSyncKey, t)
}

// SetLastBackup records when a backup was last created.
func (s *State) SetLastBackup(t time.Time) error {
	return s.putTime(lastBackupKey, t)
}

func (s *State) putTime(key []byte, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(diaryBucket).Put(key, []byte(t.UTC().Format(time.RFC3339Nano)))
	})
}

// RemoteSettings returns the saved WebDAV settings, or nil if none.
func (s *State) RemoteSettings() (*models.RemoteSettings, error) {
	var rs *models.RemoteSettings

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(settingsBucket).Get(webdavKey)
		if v == nil {
			return nil
		}

		rs = &models.RemoteSettings{}

		return json.Unmarshal(v, rs)
	})

	return rs, err
}

// SaveRemoteSettings persists WebDAV settings.
func (s *State) SaveRemoteSettings(rs models.RemoteSettings) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(webdavKey, data)
	})
}

// ClearRemoteSettings removes saved WebDAV settings.
func (s *State) ClearRemoteSettings() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Delete(webdavKey)
	})
}

func parseTime(v []byte) time.Time {
	if v == nil {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}
	}

	return t
}

func nonNilEntries(e models.Entries) models.Entries {
	if e == nil {
		return models.Entries{}
	}

	return e
}

func nonNilPlans(p models.Plans) models.Plans {
	if p == nil {
		return models.Plans{}
	}

	return p
}
