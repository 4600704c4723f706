package cloudsync

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// Preview summarizes what choosing the remote side would change in the
// local content.
type Preview struct {
	ChangedDays   []string `json:"changed_days"`
	ChangedMonths []string `json:"changed_months"`
	LinesAdded    int      `json:"lines_added"`
	LinesRemoved  int      `json:"lines_removed"`
}

// buildPreview compares local content with a remote document. Timestamps
// are ignored; only diary and plan content counts.
func buildPreview(local models.LocalData, remote models.Document) Preview {
	var p Preview

	for _, day := range unionKeys(local.Entries, remote.Data) {
		if !dayEqual(local.Entries[day], remote.Data[day]) {
			p.ChangedDays = append(p.ChangedDays, day)
		}
	}

	for _, month := range unionKeys(local.Plans, remote.MonthlyPlans) {
		if !slices.Equal(local.Plans[month], remote.MonthlyPlans[month]) {
			p.ChangedMonths = append(p.ChangedMonths, month)
		}
	}

	p.LinesAdded, p.LinesRemoved = lineDiff(
		contentText(local.Entries, local.Plans),
		contentText(remote.Data, remote.MonthlyPlans),
	)

	return p
}

func unionKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// dayEqual compares two day records, treating nil and empty lists alike.
func dayEqual(a, b models.DayRecord) bool {
	return a.Date == b.Date &&
		slices.Equal(a.Events, b.Events) &&
		slices.Equal(a.Stickers, b.Stickers)
}

// contentText renders content as indented JSON with sorted keys so a
// line diff lines up day by day.
func contentText(entries models.Entries, plans models.Plans) string {
	raw, err := json.MarshalIndent(struct {
		Data         models.Entries `json:"data"`
		MonthlyPlans models.Plans   `json:"monthlyPlans"`
	}{entries, plans}, "", "  ")
	if err != nil {
		return ""
	}

	return string(raw) + "\n"
}

// lineDiff counts lines added and removed going from a to b.
func lineDiff(a, b string) (added, removed int) {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}

	return added, removed
}
