// Package console is the terminal front end for sync sessions: it prints
// the session log and asks the user to pick from numbered choices.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxPreviewDays caps how many changed days a conflict prompt lists.
const maxPreviewDays = 10

var (
	conflictLabels = map[cloudsync.ConflictChoice]string{
		cloudsync.ConflictUseRemote: msgUseRemote,
		cloudsync.ConflictUseLocal:  msgUseLocal,
		cloudsync.ConflictCancel:    msgCancel,
	}
	restoreLabels = map[cloudsync.RestoreChoice]string{
		cloudsync.RestoreBackupFirst: msgBackupFirst,
		cloudsync.RestoreDirect:      msgRestoreDirect,
		cloudsync.RestoreCancel:      msgCancel,
	}
	deleteLabels = map[cloudsync.DeleteChoice]string{
		cloudsync.DeleteConfirm: msgDeleteConfirm,
		cloudsync.DeleteCancel:  msgCancel,
	}
)

// Console implements cloudsync.Decider over a line-oriented reader and
// prints session events to a writer. End of input answers every
// remaining prompt with cancel.
type Console struct {
	out io.Writer
	now func() time.Time
	p   *message.Printer

	mu    sync.Mutex
	lines chan string
	start sync.Once
	in    io.Reader
}

var _ cloudsync.Decider = (*Console)(nil)

// New returns a Console reading answers from in and writing to out,
// with menus and summaries in lang.
func New(in io.Reader, out io.Writer, lang language.Tag) *Console {
	return &Console{in: in, out: out, now: time.Now, p: newPrinter(lang)}
}

// readLines feeds input lines to the prompt loop. It runs once per
// Console so that a prompt abandoned by a cancelled context does not
// lose the next line.
func (c *Console) readLines() {
	c.lines = make(chan string)
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
}

// choose prints a numbered menu and returns the picked index. ok is
// false on end of input.
func (c *Console) choose(ctx context.Context, labels []string) (int, bool, error) {
	c.start.Do(c.readLines)

	for {
		for i, label := range labels {
			c.printf("  %d) %s\n", i+1, c.p.Sprintf(label))
		}
		c.say(msgChoose, len(labels))

		select {
		case <-ctx.Done():
			c.printf("\n")
			return 0, false, ctx.Err()
		case line, open := <-c.lines:
			if !open {
				c.printf("\n")
				return 0, false, nil
			}
			n, err := strconv.Atoi(strings.TrimSpace(line))
			if err == nil && n >= 1 && n <= len(labels) {
				return n - 1, true, nil
			}
			c.sayln(msgInvalidChoice, len(labels))
		}
	}
}

// ResolveConflict shows both timestamps and a change summary, then asks
// which side wins.
func (c *Console) ResolveConflict(ctx context.Context, conflict cloudsync.Conflict) (cloudsync.ConflictChoice, error) {
	c.printf("\n")
	c.sayln(msgConflictHeader)
	c.sayln(msgConflictLocal, conflict.LocalUpdatedAt, conflict.LocalDays)
	c.sayln(msgConflictRemote, conflict.RemoteUpdatedAt, conflict.RemoteDays)
	c.printPreview(conflict.Preview)

	labels := make([]string, len(cloudsync.ConflictChoices))
	for i, choice := range cloudsync.ConflictChoices {
		labels[i] = conflictLabels[choice]
	}

	i, ok, err := c.choose(ctx, labels)
	if err != nil || !ok {
		return cloudsync.ConflictCancel, err
	}

	return cloudsync.ConflictChoices[i], nil
}

// ConfirmRestore describes the snapshot and asks how to restore it.
func (c *Console) ConfirmRestore(ctx context.Context, req cloudsync.RestoreRequest) (cloudsync.RestoreChoice, error) {
	c.printf("\n")
	c.sayln(msgRestoreHeader, req.Filename)
	c.sayln(msgRestoreDetail, req.UpdatedAt, req.Days, req.Months)
	c.sayln(msgRestoreReplaces)

	labels := make([]string, len(cloudsync.RestoreChoices))
	for i, choice := range cloudsync.RestoreChoices {
		labels[i] = restoreLabels[choice]
	}

	i, ok, err := c.choose(ctx, labels)
	if err != nil || !ok {
		return cloudsync.RestoreCancel, err
	}

	return cloudsync.RestoreChoices[i], nil
}

// ConfirmDelete asks before a backup is removed.
func (c *Console) ConfirmDelete(ctx context.Context, req cloudsync.DeleteRequest) (cloudsync.DeleteChoice, error) {
	c.printf("\n")
	c.sayln(msgDeleteHeader, req.Filename)

	labels := make([]string, len(cloudsync.DeleteChoices))
	for i, choice := range cloudsync.DeleteChoices {
		labels[i] = deleteLabels[choice]
	}

	i, ok, err := c.choose(ctx, labels)
	if err != nil || !ok {
		return cloudsync.DeleteCancel, err
	}

	return cloudsync.DeleteChoices[i], nil
}

func (c *Console) printPreview(p cloudsync.Preview) {
	if len(p.ChangedDays) == 0 && len(p.ChangedMonths) == 0 {
		c.sayln(msgIdentical)
		return
	}

	c.sayln(msgPreviewSummary, len(p.ChangedDays), len(p.ChangedMonths), p.LinesAdded, p.LinesRemoved)

	days := p.ChangedDays
	if len(days) > maxPreviewDays {
		days = days[:maxPreviewDays]
	}
	if len(days) > 0 {
		more := ""
		if n := len(p.ChangedDays) - len(days); n > 0 {
			more = c.p.Sprintf(msgPreviewMore, n)
		}
		c.sayln(msgPreviewDays, strings.Join(days, ", "), more)
	}
}

// Report prints log events as timestamped lines. State and reload
// events are not shown.
func (c *Console) Report(ev cloudsync.Event) {
	if ev.Kind != cloudsync.KindLog {
		return
	}

	mark := " "
	switch ev.Level {
	case cloudsync.LevelSuccess:
		mark = "✓"
	case cloudsync.LevelError:
		mark = "✗"
	}

	c.printf("%s %s %s\n", ev.Time.Local().Format("15:04:05"), mark, ev.Message)
}

// PrintStatus writes the local sync bookkeeping.
func (c *Console) PrintStatus(st cloudsync.Status) {
	c.sayln(msgStatusUpdated, orDash(st.UpdatedAt))
	c.sayln(msgStatusLastSync, c.relative(st.LastSync))
	c.sayln(msgStatusLastBackup, c.relative(st.LastBackup))
	c.sayln(msgStatusDays, st.Days)
	c.sayln(msgStatusMonths, st.Months)
}

// PrintBackups writes the backup catalog, newest first.
func (c *Console) PrintBackups(backups []models.Backup) {
	if len(backups) == 0 {
		c.sayln(msgNoBackups)
		return
	}

	for _, b := range backups {
		c.printf("%-30s %10s  %s\n", b.Filename, humanize.IBytes(uint64(b.SizeBytes)), c.relative(b.LastModified))
	}
}

// PrintResult writes a one-line summary of a finished operation.
func (c *Console) PrintResult(res cloudsync.Result) {
	switch res.Outcome {
	case cloudsync.OutcomeCancelled:
		c.sayln(msgResultCancelled)
	case cloudsync.OutcomeBackedUp:
		c.sayln(msgResultBackedUp, res.Backup)
	case cloudsync.OutcomeDeleted:
		c.sayln(msgResultDeleted, res.Backup)
	default:
		c.sayln(msgResultDone, strings.ReplaceAll(res.Outcome.String(), "_", " "), orDash(res.UpdatedAt))
	}
}

func (c *Console) relative(t time.Time) string {
	if t.IsZero() {
		return c.p.Sprintf(msgNever)
	}

	return fmt.Sprintf("%s (%s)", humanize.RelTime(t, c.now(), "ago", "from now"), t.Local().Format("2006-01-02 15:04"))
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// say prints the catalog message key in the console language.
func (c *Console) say(key string, args ...any) {
	c.printf("%s", c.p.Sprintf(key, args...))
}

func (c *Console) sayln(key string, args ...any) {
	c.printf("%s\n", c.p.Sprintf(key, args...))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
