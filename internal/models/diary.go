// Package models defines types shared across internal packages.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// DocumentVersion is the only sync document version this build reads
// and writes.
const DocumentVersion = 1

// DayEvent is one text event recorded on a day.
type DayEvent struct {
	ID      string `json:"id" yaml:"id"`
	RawText string `json:"rawText" yaml:"rawText"`
	Summary string `json:"summary" yaml:"summary"`
	Emoji   string `json:"emoji" yaml:"emoji"`
}

// DayRecord holds everything recorded for a single date.
type DayRecord struct {
	Date     string     `json:"date" yaml:"date"`
	Events   []DayEvent `json:"events" yaml:"events"`
	Stickers []string   `json:"stickers" yaml:"stickers"`
}

// Entries maps a YYYY-MM-DD date key to its day record.
type Entries map[string]DayRecord

// Plans maps a YYYY-MM month key to its three plan lines.
type Plans map[string][]string

// Document is the unit of remote synchronization. The same envelope is
// used for the live document, backup snapshots and export files.
type Document struct {
	Version      int     `json:"version" yaml:"version"`
	UpdatedAt    string  `json:"updatedAt" yaml:"updatedAt"`
	Data         Entries `json:"data" yaml:"data"`
	MonthlyPlans Plans   `json:"monthlyPlans" yaml:"monthlyPlans"`
}

// LocalData is the pair of local documents plus the content marker that
// records which remote updatedAt the content corresponds to.
type LocalData struct {
	Entries   Entries
	Plans     Plans
	UpdatedAt string
}

// Markers holds the informational timestamps shown by the session UI.
type Markers struct {
	UpdatedAt  string    `json:"updated_at"`
	LastSync   time.Time `json:"last_sync"`
	LastBackup time.Time `json:"last_backup"`
}

// Normalize replaces nil maps with empty ones so encoded documents
// always carry objects, never null.
func (d *Document) Normalize() {
	if d.Data == nil {
		d.Data = Entries{}
	}

	if d.MonthlyPlans == nil {
		d.MonthlyPlans = Plans{}
	}
}

// StampLayout is the updatedAt format written by this module: ISO-8601
// in UTC with millisecond precision.
const StampLayout = "2006-01-02T15:04:05.000Z"

// FormatStamp renders t in StampLayout.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// ParseStamp parses an updatedAt value. Any RFC 3339 timestamp is
// accepted; ok is false for empty or malformed input.
func ParseStamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// FreshStamp returns a new updatedAt for content finalized at now. The
// result is always strictly later than prev when prev parses, so a
// clock that stepped backwards cannot make new content look older.
func FreshStamp(now time.Time, prev string) string {
	now = now.UTC().Truncate(time.Millisecond)

	if p, ok := ParseStamp(prev); ok {
		floor := p.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
		if now.Before(floor) {
			now = floor
		}
	}

	return FormatStamp(now)
}

// SameContent reports whether a and b hold the same entries and plans.
// The updatedAt markers are not compared, and nil maps equal empty ones.
func SameContent(a, b LocalData) bool {
	ra, errA := canonical(a)
	rb, errB := canonical(b)

	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func canonical(d LocalData) ([]byte, error) {
	entries := d.Entries
	if entries == nil {
		entries = Entries{}
	}

	plans := d.Plans
	if plans == nil {
		plans = Plans{}
	}

	return json.Marshal(struct {
		Entries Entries `json:"e"`
		Plans   Plans   `json:"p"`
	}{entries, plans})
}
