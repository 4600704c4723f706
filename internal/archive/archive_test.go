package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/state"
)

func testStore(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample() models.LocalData {
	return models.LocalData{
		Entries: models.Entries{
			"2024-02-14": {
				Date:     "2024-02-14",
				Events:   []models.DayEvent{{ID: "v", RawText: "dinner 7pm", Summary: "Dinner", Emoji: "🌹"}},
				Stickers: []string{"love"},
			},
		},
		Plans:     models.Plans{"2024-02": {"ski trip", "", "dentist"}},
		UpdatedAt: "2024-02-14T20:00:00.000Z",
	}
}

var now = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("diary.json"))
	assert.Equal(t, FormatJSON, FormatFor("diary"))
	assert.Equal(t, FormatYAML, FormatFor("diary.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("DIARY.YML"))
}

func TestEncodeDecode_BothFormats(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(f.String(), func(t *testing.T) {
			raw, err := Encode(sample(), f)
			require.NoError(t, err)

			p, err := Decode(raw, f)
			require.NoError(t, err)
			assert.Equal(t, models.DocumentVersion, p.Version)
			assert.Equal(t, sample().UpdatedAt, p.UpdatedAt)
			assert.Equal(t, sample().Entries, p.Entries)
			assert.Equal(t, sample().Plans, p.Plans)
		})
	}
}

func TestDecode_LegacyVersion2(t *testing.T) {
	raw := []byte(`{
  "version": 2,
  "data": {"2023-12-25": {"date": "2023-12-25", "events": [], "stickers": ["tree"]}},
  "monthlyPlans": {"2023-12": ["gifts", "cards", "rest"]}
}`)

	p, err := Decode(raw, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, LegacyExportVersion, p.Version)
	assert.Equal(t, []string{"tree"}, p.Entries["2023-12-25"].Stickers)
	assert.Equal(t, []string{"gifts", "cards", "rest"}, p.Plans["2023-12"])
}

func TestDecode_PartialFiles(t *testing.T) {
	p, err := Decode([]byte(`{"version":2,"monthlyPlans":{}}`), FormatJSON)
	require.NoError(t, err)
	assert.Nil(t, p.Entries)
	assert.NotNil(t, p.Plans)
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{{`,
		"empty object": `{}`,
		"null data":    `{"version":2,"data":null}`,
		"wrong types":  `{"version":2,"data":[]}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw), FormatJSON)
			assert.ErrorIs(t, err, errs.ErrFormat)
		})
	}
}

func TestDecode_UnknownVersion(t *testing.T) {
	_, err := Decode([]byte(`{"version":7,"data":{}}`), FormatJSON)
	require.ErrorIs(t, err, errs.ErrFormat)
	assert.ErrorIs(t, err, errs.ErrUnsupportedVersion)
}

func TestDecode_YAMLUnquotedDates(t *testing.T) {
	raw := []byte(`version: 2
data:
  2024-04-01:
    date: 2024-04-01
    events:
      - id: a
        rawText: april fools
        summary: Prank
        emoji: "🤡"
    stickers: []
`)

	p, err := Decode(raw, FormatYAML)
	require.NoError(t, err)
	require.Contains(t, p.Entries, "2024-04-01")
	assert.Equal(t, "2024-04-01", p.Entries["2024-04-01"].Date)
	assert.Nil(t, p.Plans)
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, name := range []string{"export.json", "export.yaml"} {
		t.Run(name, func(t *testing.T) {
			src := testStore(t)
			require.NoError(t, src.Save(sample()))

			path := filepath.Join(t.TempDir(), name)
			days, err := Export(path, src)
			require.NoError(t, err)
			assert.Equal(t, 1, days)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, filePerm, info.Mode().Perm())

			dst := testStore(t)
			res, err := Import(path, dst, now)
			require.NoError(t, err)
			assert.True(t, res.ReplacedData)
			assert.True(t, res.ReplacedPlans)
			assert.Equal(t, 1, res.Days)
			assert.Equal(t, "2024-03-01T00:00:00.000Z", res.UpdatedAt)

			got, err := dst.Load()
			require.NoError(t, err)
			assert.Equal(t, sample().Entries, got.Entries)
			assert.Equal(t, sample().Plans, got.Plans)
			assert.Equal(t, "2024-03-01T00:00:00.000Z", got.UpdatedAt)
		})
	}
}

func TestImport_StampIsAfterCurrentMarker(t *testing.T) {
	s := testStore(t)
	current := sample()
	current.UpdatedAt = "2030-01-01T00:00:00.000Z"
	require.NoError(t, s.Save(current))

	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"data":{}}`), 0o600))

	res, err := Import(path, s, now)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01T00:00:00.001Z", res.UpdatedAt)
}

func TestImport_PartialKeepsOtherDocument(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sample()))

	path := filepath.Join(t.TempDir(), "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"monthlyPlans":{"2024-09":["a","b","c"]}}`), 0o600))

	res, err := Import(path, s, now)
	require.NoError(t, err)
	assert.False(t, res.ReplacedData)
	assert.True(t, res.ReplacedPlans)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, sample().Entries, got.Entries)
	assert.Equal(t, models.Plans{"2024-09": {"a", "b", "c"}}, got.Plans)
}

func TestImport_InvalidFileLeavesStore(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(sample()))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hello":"world"}`), 0o600))

	_, err := Import(path, s, now)
	require.ErrorIs(t, err, errs.ErrFormat)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestImport_MissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "nope.json"), testStore(t), now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
