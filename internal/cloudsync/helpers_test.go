package cloudsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
	"github.com/trustdev-org/calendar-diary/internal/remote/remotetest"
)

// memLocal is an in-memory LocalStore.
type memLocal struct {
	mu      sync.Mutex
	data    models.LocalData
	markers models.Markers
	saveErr error
	saves   int
}

func newMemLocal(data models.LocalData) *memLocal {
	return &memLocal{data: data, markers: models.Markers{UpdatedAt: data.UpdatedAt}}
}

func (m *memLocal) Load() (models.LocalData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memLocal) Save(data models.LocalData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	m.markers.UpdatedAt = data.UpdatedAt
	return nil
}

func (m *memLocal) SetUpdatedAt(ts string, _ models.LocalData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.UpdatedAt = ts
	m.markers.UpdatedAt = ts
	return nil
}

func (m *memLocal) Markers() (models.Markers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers, nil
}

func (m *memLocal) SetLastSync(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers.LastSync = t
	return nil
}

func (m *memLocal) SetLastBackup(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers.LastBackup = t
	return nil
}

// recorder collects session events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, ev := range r.events {
		if ev.Kind == KindState {
			out = append(out, ev.State)
		}
	}
	return out
}

func (r *recorder) has(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == KindLog {
			out = append(out, ev.Message)
		}
	}
	return out
}

// scriptedDecider answers with fixed choices and records the requests.
type scriptedDecider struct {
	Preset
	err       error
	conflicts []Conflict
	restores  []RestoreRequest
	deletes   []DeleteRequest
}

func (d *scriptedDecider) ResolveConflict(ctx context.Context, c Conflict) (ConflictChoice, error) {
	d.conflicts = append(d.conflicts, c)
	if d.err != nil {
		return ConflictUseRemote, d.err
	}
	return d.Preset.ResolveConflict(ctx, c)
}

func (d *scriptedDecider) ConfirmRestore(ctx context.Context, r RestoreRequest) (RestoreChoice, error) {
	d.restores = append(d.restores, r)
	if d.err != nil {
		return RestoreDirect, d.err
	}
	return d.Preset.ConfirmRestore(ctx, r)
}

func (d *scriptedDecider) ConfirmDelete(ctx context.Context, r DeleteRequest) (DeleteChoice, error) {
	d.deletes = append(d.deletes, r)
	if d.err != nil {
		return DeleteConfirm, d.err
	}
	return d.Preset.ConfirmDelete(ctx, r)
}

var fixedNow = time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func localSample(updatedAt string) models.LocalData {
	return models.LocalData{
		Entries: models.Entries{
			"2024-01-01": {
				Date:     "2024-01-01",
				Events:   []models.DayEvent{{ID: "1", RawText: "new year walk", Summary: "Walk", Emoji: "🚶"}},
				Stickers: []string{},
			},
		},
		Plans:     models.Plans{"2024-01": {"exercise", "read", "save"}},
		UpdatedAt: updatedAt,
	}
}

func remoteSample(updatedAt string) models.Document {
	return models.Document{
		Version:   models.DocumentVersion,
		UpdatedAt: updatedAt,
		Data: models.Entries{
			"2024-05-30": {
				Date:     "2024-05-30",
				Events:   []models.DayEvent{{ID: "9", RawText: "flight to Osaka", Summary: "Flight", Emoji: "✈️"}},
				Stickers: []string{"excited"},
			},
		},
		MonthlyPlans: models.Plans{"2024-06": {"pack", "visa", "yen"}},
	}
}

// putRemote stores doc as the live document with its directories.
func putRemote(t *testing.T, mem *remotetest.Memory, doc models.Document) []byte {
	t.Helper()
	raw, err := EncodeDocument(doc)
	require.NoError(t, err)
	mem.Put(remote.DataPath, raw, fixedNow)
	require.NoError(t, mem.Mkdir(context.Background(), remote.BackupsDir))
	return raw
}

func newTestEngine(local LocalStore, store remote.Store, d Decider) (*Engine, *recorder) {
	rec := &recorder{}
	e := New(local, store, Options{Now: fixedClock}).WithUI(d, rec.report)
	return e, rec
}
