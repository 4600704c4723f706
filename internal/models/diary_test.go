package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2024-06-01T00:00:00Z", true, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-06-01T00:00:00.250Z", true, time.Date(2024, 6, 1, 0, 0, 0, 250e6, time.UTC)},
		{"2024-06-01T08:00:00+08:00", true, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"", false, time.Time{}},
		{"yesterday", false, time.Time{}},
		{"2024-06-01", false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestFormatStamp(t *testing.T) {
	ts := time.Date(2025, 1, 31, 23, 59, 59, 123456789, time.FixedZone("CST", 8*3600))
	assert.Equal(t, "2025-01-31T15:59:59.123Z", FormatStamp(ts))
}

func TestFreshStamp_UsesNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", FreshStamp(now, "2024-01-01T00:00:00Z"))
}

func TestFreshStamp_StrictlyAfterPrevious(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-06-01T00:00:00.001Z", FreshStamp(now, "2024-06-01T00:00:00Z"))
	assert.Equal(t, "2024-01-01T00:00:00.001Z", FreshStamp(now, "2024-01-01T00:00:00.000Z"))
}

func TestFreshStamp_IgnoresInvalidPrevious(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", FreshStamp(now, "garbage"))
	assert.Equal(t, "2024-01-01T00:00:00.000Z", FreshStamp(now, ""))
}

func TestDocumentNormalize(t *testing.T) {
	var d Document
	d.Normalize()
	assert.NotNil(t, d.Data)
	assert.NotNil(t, d.MonthlyPlans)
}

func TestSameContent(t *testing.T) {
	day := DayRecord{Date: "2024-06-01", Events: []DayEvent{{ID: "1", RawText: "ran"}}}
	a := LocalData{Entries: Entries{"2024-06-01": day}, UpdatedAt: "2024-06-01T00:00:00.000Z"}
	b := LocalData{Entries: Entries{"2024-06-01": day}, Plans: Plans{}, UpdatedAt: "2024-07-01T00:00:00.000Z"}

	assert.True(t, SameContent(a, b))
	assert.True(t, SameContent(LocalData{}, LocalData{Entries: Entries{}, Plans: Plans{}}))

	b.Plans = Plans{"2024-06": {"read", "", ""}}
	assert.False(t, SameContent(a, b))
}
