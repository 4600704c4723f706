package localfs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// Watch monitors the data directory and stamps a fresh content marker
// whenever the diary files change outside Save. It blocks until the
// context is cancelled, then returns nil. Run it alongside the editor that writes the
// files so later syncs see its edits as local changes.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	// Catch up on edits made before the watcher started.
	s.reconcile()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if isDocumentEvent(event) {
				s.reconcile()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}
			// Non-fatal (e.g. event queue overflow). The next event or
			// the hash check in Load picks up anything missed.
			s.logger.Warn("fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// isDocumentEvent reports whether an event touches one of the two diary
// documents. Temp files from Save are renamed into place, which shows up
// as a Create on the target name.
func isDocumentEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if name != EntriesFile && name != PlansFile {
		return false
	}

	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// reconcile compares the documents with the recorded hash and, if they
// differ, records a fresh marker for the new content. Saves made through
// the store already updated the hash, so they are no-ops here.
func (s *Store) reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawEntries, rawPlans, err := s.readDocuments()
	if err != nil {
		s.logger.Warn("reading local documents", slog.String("error", err.Error()))
		return
	}

	m, err := s.readMeta()
	if err != nil {
		s.logger.Warn("reading sync metadata", slog.String("error", err.Error()))
		return
	}

	hash := contentHash(rawEntries, rawPlans)
	if hash == m.ContentHash {
		return
	}

	// Files that predate the metadata are adopted without a marker.
	if m.ContentHash != "" || m.UpdatedAt != "" {
		m.UpdatedAt = models.FreshStamp(s.now(), m.UpdatedAt)
	}
	m.ContentHash = hash

	if err := s.writeMeta(m); err != nil {
		s.logger.Error("recording local change", slog.String("error", err.Error()))
		return
	}

	s.logger.Debug("local documents changed", slog.String("updated_at", m.UpdatedAt))
}
