// Package cloudsync reconciles the local diary with its remote copy and
// manages the remote backup catalog.
//
// Each operation runs as one sequential chain of remote calls. The only
// open-ended pauses are the three user decisions, which are delegated to
// a Decider. One operation runs at a time per Engine; a second caller
// gets errors.ErrBusy instead of waiting.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LocalStore holds the two local documents and the sync markers. Load
// and Save treat the documents as one unit.
type LocalStore interface {
	Load() (models.LocalData, error)
	Save(data models.LocalData) error
	SetUpdatedAt(ts string, uploaded models.LocalData) error
	Markers() (models.Markers, error)
	SetLastSync(t time.Time) error
	SetLastBackup(t time.Time) error
}

// Outcome is how a completed operation ended.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	OutcomeUploaded
	OutcomeDownloaded
	OutcomeUpToDate
	OutcomeBackedUp
	OutcomeRestored
	OutcomeDeleted
)

var outcomeNames = [...]string{
	OutcomeCancelled:  "cancelled",
	OutcomeUploaded:   "uploaded",
	OutcomeDownloaded: "downloaded",
	OutcomeUpToDate:   "up_to_date",
	OutcomeBackedUp:   "backed_up",
	OutcomeRestored:   "restored",
	OutcomeDeleted:    "deleted",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}

	return outcomeNames[o]
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}

	return fmt.Errorf("unknown outcome %q", text)
}

// Result reports a completed operation.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// UpdatedAt is the local content marker after the operation.
	UpdatedAt string `json:"updated_at,omitempty"`
	// Backup names the snapshot created by the operation, if any.
	Backup string `json:"backup,omitempty"`
	// Reload is set when the local documents were replaced.
	Reload bool `json:"reload,omitempty"`
}

// Status is a snapshot of the local sync bookkeeping.
type Status struct {
	State      State     `json:"state"`
	UpdatedAt  string    `json:"updated_at"`
	LastSync   time.Time `json:"last_sync"`
	LastBackup time.Time `json:"last_backup"`
	Days       int       `json:"days"`
	Months     int       `json:"months"`
}

// Options configure an Engine.
type Options struct {
	Logger *slog.Logger
	// Language selects the session log language. Defaults to English.
	Language language.Tag
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// shared is the per-Engine state common to every session view.
type shared struct {
	sem   *semaphore.Weighted
	state atomic.Int32
}

// Engine runs sync and backup operations for one local/remote pair.
type Engine struct {
	local   LocalStore
	remote  remote.Store
	catalog *Catalog
	logger  *slog.Logger
	printer *message.Printer
	now     func() time.Time
	shared  *shared

	decider Decider
	report  ReportFunc
}

// New returns an Engine with no UI attached: decisions cancel and
// events are only logged.
func New(local LocalStore, store remote.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}

	return &Engine{
		local:   local,
		remote:  store,
		catalog: NewCatalog(store, opts.Now),
		logger:  opts.Logger,
		printer: newPrinter(opts.Language),
		now:     opts.Now,
		shared:  &shared{sem: semaphore.NewWeighted(1)},
	}
}

// WithUI returns a view of the engine bound to one UI session. Views
// share the single-operation guard with the engine they came from.
func (e *Engine) WithUI(decider Decider, report ReportFunc) *Engine {
	view := *e
	view.decider = decider
	view.report = report

	return &view
}

// WithLanguage returns a view that reports in the given language.
func (e *Engine) WithLanguage(tag language.Tag) *Engine {
	view := *e
	view.printer = newPrinter(tag)

	return &view
}

// State returns the state of the running operation, StateIdle if none.
func (e *Engine) State() State {
	return State(e.shared.state.Load())
}

// acquire claims the single-operation guard.
func (e *Engine) acquire() (func(), error) {
	if !e.shared.sem.TryAcquire(1) {
		return nil, errs.ErrBusy
	}

	return func() {
		e.setState(StateIdle)
		e.shared.sem.Release(1)
	}, nil
}

func (e *Engine) setState(s State) {
	if State(e.shared.state.Swap(int32(s))) == s {
		return
	}

	e.logger.Debug("sync state", slog.String("state", s.String()))
	e.emit(Event{Kind: KindState, State: s})
}

func (e *Engine) emit(ev Event) {
	if e.report == nil {
		return
	}

	ev.Time = e.now()
	if ev.Kind != KindState {
		ev.State = e.State()
	}
	e.report(ev)
}

func (e *Engine) logf(level Level, key string, args ...any) {
	e.emit(Event{Kind: KindLog, Level: level, Message: e.printer.Sprintf(key, args...)})
}

// fail records a failed operation and returns err unchanged.
func (e *Engine) fail(op, key string, err error) error {
	e.setState(StateFailed)
	e.logf(LevelError, key, err.Error())
	e.logger.Error("operation failed", slog.String("op", op), slog.String("error", err.Error()))

	return err
}

// Connect verifies the remote is reachable and creates the root, data
// and backups directories if they are missing.
func (e *Engine) Connect(ctx context.Context) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.connect(ctx); err != nil {
		return e.fail("connect", msgConnectFailed, err)
	}

	return nil
}

func (e *Engine) connect(ctx context.Context) error {
	e.setState(StateConnecting)
	e.logf(LevelInfo, msgConnecting)

	for _, dir := range []string{"", remote.DataDir, remote.BackupsDir} {
		if err := ensureDir(ctx, e.remote, dir); err != nil {
			return fmt.Errorf("%w: %w", errs.ErrConnection, err)
		}
	}

	e.logf(LevelSuccess, msgConnected)

	return nil
}

// Sync reconciles local content with the remote document:
//
//   - remote absent or local marker newer: upload with a fresh stamp
//   - remote newer: ask the Decider (use remote, use local, cancel)
//   - equal: nothing to do
//
// Every branch but cancel records the last sync time. A failure leaves
// both sides as they were before the failing write.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	release, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	e.logf(LevelInfo, msgSyncStarting)

	res, err := e.sync(ctx)
	if err != nil {
		return Result{}, e.fail("sync", msgSyncFailed, err)
	}

	if res.Outcome != OutcomeCancelled {
		e.touchLastSync()
		e.logf(LevelSuccess, msgSyncComplete)
	}

	e.logger.Info("sync finished",
		slog.String("op", "sync"),
		slog.String("outcome", res.Outcome.String()),
		slog.String("updated_at", res.UpdatedAt),
	)

	return res, nil
}

func (e *Engine) sync(ctx context.Context) (Result, error) {
	if err := e.connect(ctx); err != nil {
		return Result{}, err
	}

	e.setState(StateComparing)

	local, err := e.local.Load()
	if err != nil {
		return Result{}, fmt.Errorf("loading local data: %w", err)
	}

	remoteDoc, found, err := e.readRemote(ctx)
	if err != nil {
		return Result{}, err
	}

	if !found {
		e.logf(LevelInfo, msgFirstSync)
		res, err := e.upload(ctx, local, "")
		if err == nil {
			e.logf(LevelSuccess, msgFirstSyncDone)
		}
		return res, err
	}

	switch compareMarkers(local.UpdatedAt, remoteDoc.UpdatedAt) {
	case 1:
		e.logf(LevelInfo, msgLocalNewer)
		res, err := e.upload(ctx, local, remoteDoc.UpdatedAt)
		if err == nil {
			e.logf(LevelSuccess, msgUploadDone)
		}
		return res, err

	case 0:
		e.setState(StateUpToDate)
		e.logf(LevelSuccess, msgUpToDate)
		return Result{Outcome: OutcomeUpToDate, UpdatedAt: local.UpdatedAt}, nil
	}

	return e.resolve(ctx, local, remoteDoc)
}

// resolve handles a remote document newer than the local marker.
func (e *Engine) resolve(ctx context.Context, local models.LocalData, remoteDoc models.Document) (Result, error) {
	e.setState(StateAwaitingConflictChoice)
	e.logf(LevelInfo, msgConflict, displayStamp(remoteDoc.UpdatedAt), displayStamp(local.UpdatedAt))

	choice := e.resolveConflict(ctx, Conflict{
		LocalUpdatedAt:  local.UpdatedAt,
		RemoteUpdatedAt: remoteDoc.UpdatedAt,
		LocalDays:       len(local.Entries),
		RemoteDays:      len(remoteDoc.Data),
		Preview:         buildPreview(local, remoteDoc),
	})

	switch choice {
	case ConflictUseRemote:
		e.setState(StateDownloading)
		if err := e.local.Save(localFrom(remoteDoc)); err != nil {
			return Result{}, fmt.Errorf("saving remote data locally: %w", err)
		}
		e.logf(LevelSuccess, msgUsedRemote)
		e.reload()
		return Result{Outcome: OutcomeDownloaded, UpdatedAt: remoteDoc.UpdatedAt, Reload: true}, nil

	case ConflictUseLocal:
		res, err := e.upload(ctx, local, remoteDoc.UpdatedAt)
		if err == nil {
			e.logf(LevelSuccess, msgUsedLocal)
		}
		return res, err
	}

	e.logf(LevelInfo, msgSyncCancelled)

	return Result{Outcome: OutcomeCancelled, UpdatedAt: local.UpdatedAt}, nil
}

// upload stamps local content strictly after both the local marker and
// remoteStamp, writes it as the live document, then records the stamp
// locally. The remote write comes first: if it fails nothing changed.
func (e *Engine) upload(ctx context.Context, local models.LocalData, remoteStamp string) (Result, error) {
	e.setState(StateUploading)

	stamp := models.FreshStamp(e.now(), laterStamp(local.UpdatedAt, remoteStamp))

	raw, err := EncodeDocument(documentFrom(local, stamp))
	if err != nil {
		return Result{}, err
	}

	if err := e.remote.Write(ctx, remote.DataPath, raw, true); err != nil {
		return Result{}, fmt.Errorf("uploading sync document: %w", err)
	}

	if err := e.local.SetUpdatedAt(stamp, local); err != nil {
		return Result{}, fmt.Errorf("recording sync marker: %w", err)
	}

	return Result{Outcome: OutcomeUploaded, UpdatedAt: stamp}, nil
}

// readRemote fetches the live document; found is false when the remote
// has none yet.
func (e *Engine) readRemote(ctx context.Context) (models.Document, bool, error) {
	raw, err := e.remote.Read(ctx, remote.DataPath)
	if errors.Is(err, errs.ErrNotFound) {
		return models.Document{}, false, nil
	}
	if err != nil {
		return models.Document{}, false, fmt.Errorf("reading sync document: %w", err)
	}

	doc, err := DecodeDocument(raw)
	if err != nil {
		return models.Document{}, false, fmt.Errorf("remote sync document: %w", err)
	}

	return doc, true, nil
}

// CreateBackup snapshots the current local content to a new backup.
func (e *Engine) CreateBackup(ctx context.Context) (Result, error) {
	release, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	name, err := e.createBackup(ctx)
	if err != nil {
		return Result{}, e.fail("backup", msgBackupFailed, err)
	}

	e.logger.Info("backup created", slog.String("op", "backup"), slog.String("filename", name))

	return Result{Outcome: OutcomeBackedUp, Backup: name}, nil
}

func (e *Engine) createBackup(ctx context.Context) (string, error) {
	if err := e.connect(ctx); err != nil {
		return "", err
	}

	e.logf(LevelInfo, msgBackupStarting)

	local, err := e.local.Load()
	if err != nil {
		return "", fmt.Errorf("loading local data: %w", err)
	}

	stamp := local.UpdatedAt
	if stamp == "" {
		stamp = models.FormatStamp(e.now())
	}

	name, err := e.catalog.Create(ctx, documentFrom(local, stamp))
	if err != nil {
		return "", err
	}

	if err := e.local.SetLastBackup(e.now()); err != nil {
		e.logger.Warn("recording last backup time", slog.String("error", err.Error()))
	}

	e.logf(LevelSuccess, msgBackupCreated, name)

	return name, nil
}

// ListBackups returns the backup catalog, newest first. It is read-only
// and does not take the operation guard.
func (e *Engine) ListBackups(ctx context.Context) ([]models.Backup, error) {
	e.logf(LevelInfo, msgLoadingBackups)

	backups, err := e.catalog.List(ctx)
	if err != nil {
		e.logf(LevelError, msgLoadBackupsFailed, err.Error())
		e.logger.Error("operation failed", slog.String("op", "list_backups"), slog.String("error", err.Error()))
		return nil, err
	}

	e.logf(LevelSuccess, msgBackupsLoaded, len(backups))

	return backups, nil
}

// RestoreBackup replaces local content with a snapshot. The snapshot is
// read and validated first, then the Decider chooses between backing up
// the current content before restoring, restoring directly, or
// cancelling. The local marker becomes the snapshot's updatedAt.
func (e *Engine) RestoreBackup(ctx context.Context, filename string) (Result, error) {
	release, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	res, err := e.restore(ctx, filename)
	if err != nil {
		return Result{}, e.fail("restore", msgRestoreFailed, err)
	}

	e.logger.Info("restore finished",
		slog.String("op", "restore"),
		slog.String("filename", filename),
		slog.String("outcome", res.Outcome.String()),
	)

	return res, nil
}

func (e *Engine) restore(ctx context.Context, filename string) (Result, error) {
	doc, err := e.catalog.Restore(ctx, filename)
	if err != nil {
		return Result{}, err
	}

	choice := e.confirmRestore(ctx, RestoreRequest{
		Filename:  filename,
		UpdatedAt: doc.UpdatedAt,
		Days:      len(doc.Data),
		Months:    len(doc.MonthlyPlans),
	})

	var res Result

	switch choice {
	case RestoreBackupFirst:
		e.logf(LevelInfo, msgRestoreBackingUp)
		name, err := e.createBackup(ctx)
		if err != nil {
			return Result{}, err
		}
		e.logf(LevelSuccess, msgRestoreBackedUp, name)
		res.Backup = name

	case RestoreDirect:

	default:
		e.logf(LevelInfo, msgRestoreCancelled)
		return Result{Outcome: OutcomeCancelled}, nil
	}

	e.logf(LevelInfo, msgRestoreStarting, filename)

	if err := e.local.Save(localFrom(doc)); err != nil {
		return Result{}, fmt.Errorf("saving restored data: %w", err)
	}

	e.logf(LevelSuccess, msgRestoreComplete, filename)
	e.reload()

	res.Outcome = OutcomeRestored
	res.UpdatedAt = doc.UpdatedAt
	res.Reload = true

	return res, nil
}

// DeleteBackup removes a snapshot after the Decider confirms.
func (e *Engine) DeleteBackup(ctx context.Context, filename string) (Result, error) {
	release, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	if !remote.IsBackupName(filename) {
		err := fmt.Errorf("%w: %q", errs.ErrInvalidBackupName, filename)
		return Result{}, e.fail("delete", msgDeleteFailed, err)
	}

	if e.confirmDelete(ctx, DeleteRequest{Filename: filename}) != DeleteConfirm {
		e.logf(LevelInfo, msgDeleteCancelled)
		return Result{Outcome: OutcomeCancelled}, nil
	}

	e.logf(LevelInfo, msgDeleteStarting, filename)

	if err := e.catalog.Delete(ctx, filename); err != nil {
		return Result{}, e.fail("delete", msgDeleteFailed, err)
	}

	e.logf(LevelSuccess, msgDeleteComplete, filename)
	e.logger.Info("backup deleted", slog.String("op", "delete"), slog.String("filename", filename))

	return Result{Outcome: OutcomeDeleted, Backup: filename}, nil
}

// Status reports the local bookkeeping without contacting the remote.
func (e *Engine) Status() (Status, error) {
	local, err := e.local.Load()
	if err != nil {
		return Status{}, fmt.Errorf("loading local data: %w", err)
	}

	markers, err := e.local.Markers()
	if err != nil {
		return Status{}, fmt.Errorf("loading markers: %w", err)
	}

	return Status{
		State:      e.State(),
		UpdatedAt:  local.UpdatedAt,
		LastSync:   markers.LastSync,
		LastBackup: markers.LastBackup,
		Days:       len(local.Entries),
		Months:     len(local.Plans),
	}, nil
}

func (e *Engine) resolveConflict(ctx context.Context, c Conflict) ConflictChoice {
	if e.decider == nil {
		return ConflictCancel
	}

	choice, err := e.decider.ResolveConflict(ctx, c)
	if err != nil {
		e.logger.Warn("conflict decision abandoned", slog.String("error", err.Error()))
		return ConflictCancel
	}

	return choice
}

func (e *Engine) confirmRestore(ctx context.Context, r RestoreRequest) RestoreChoice {
	if e.decider == nil {
		return RestoreCancel
	}

	choice, err := e.decider.ConfirmRestore(ctx, r)
	if err != nil {
		e.logger.Warn("restore decision abandoned", slog.String("error", err.Error()))
		return RestoreCancel
	}

	return choice
}

func (e *Engine) confirmDelete(ctx context.Context, r DeleteRequest) DeleteChoice {
	if e.decider == nil {
		return DeleteCancel
	}

	choice, err := e.decider.ConfirmDelete(ctx, r)
	if err != nil {
		e.logger.Warn("delete decision abandoned", slog.String("error", err.Error()))
		return DeleteCancel
	}

	return choice
}

func (e *Engine) reload() {
	e.logf(LevelInfo, msgReload)
	e.emit(Event{Kind: KindReload})
}

// touchLastSync records the informational last sync time. Failing to
// record it does not fail the sync.
func (e *Engine) touchLastSync() {
	if err := e.local.SetLastSync(e.now()); err != nil {
		e.logger.Warn("recording last sync time", slog.String("error", err.Error()))
	}
}

// compareMarkers orders two updatedAt values: 1 if local is newer, -1
// if remote is newer, 0 if equal. A value that does not parse ranks
// older than any valid one; two unparseable values rank remote newer so
// the user decides.
func compareMarkers(local, remote string) int {
	lt, lok := models.ParseStamp(local)
	rt, rok := models.ParseStamp(remote)

	switch {
	case !lok:
		return -1
	case !rok:
		return 1
	case lt.After(rt):
		return 1
	case lt.Before(rt):
		return -1
	}

	return 0
}

// laterStamp returns whichever of two updatedAt values is later.
func laterStamp(a, b string) string {
	if compareMarkers(a, b) < 0 {
		return b
	}

	return a
}

func displayStamp(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
