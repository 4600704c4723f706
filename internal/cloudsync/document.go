package cloudsync

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
)

// EncodeDocument renders a sync document in its wire form.
func EncodeDocument(doc models.Document) ([]byte, error) {
	doc.Normalize()
	if doc.Version == 0 {
		doc.Version = models.DocumentVersion
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding sync document: %w", err)
	}

	return raw, nil
}

// DecodeDocument parses a sync document. Anything that is not a version
// 1 document with a data object fails with errors.ErrFormat. A missing
// monthlyPlans object decodes as empty; a missing updatedAt decodes as
// "" and ranks older than any timestamp.
func DecodeDocument(raw []byte) (models.Document, error) {
	if !gjson.ValidBytes(raw) {
		return models.Document{}, fmt.Errorf("%w: not valid JSON", errs.ErrFormat)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return models.Document{}, fmt.Errorf("%w: not a JSON object", errs.ErrFormat)
	}

	version := root.Get("version")
	if !version.Exists() {
		return models.Document{}, fmt.Errorf("%w: missing version", errs.ErrFormat)
	}
	if version.Type != gjson.Number || version.Int() != models.DocumentVersion {
		return models.Document{}, fmt.Errorf("%w: %w %s", errs.ErrFormat, errs.ErrUnsupportedVersion, version.Raw)
	}

	if data := root.Get("data"); !data.IsObject() {
		return models.Document{}, fmt.Errorf("%w: missing data object", errs.ErrFormat)
	}

	if plans := root.Get("monthlyPlans"); plans.Exists() && plans.Type != gjson.Null && !plans.IsObject() {
		return models.Document{}, fmt.Errorf("%w: monthlyPlans is not an object", errs.ErrFormat)
	}

	if ts := root.Get("updatedAt"); ts.Exists() && ts.Type != gjson.String {
		return models.Document{}, fmt.Errorf("%w: updatedAt is not a string", errs.ErrFormat)
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: %w", errs.ErrFormat, err)
	}

	doc.Normalize()

	return doc, nil
}

// documentFrom builds a sync document from local content.
func documentFrom(local models.LocalData, updatedAt string) models.Document {
	doc := models.Document{
		Version:      models.DocumentVersion,
		UpdatedAt:    updatedAt,
		Data:         local.Entries,
		MonthlyPlans: local.Plans,
	}
	doc.Normalize()

	return doc
}

// localFrom converts a sync document into local content carrying the
// document's updatedAt as the marker.
func localFrom(doc models.Document) models.LocalData {
	doc.Normalize()

	return models.LocalData{
		Entries:   doc.Data,
		Plans:     doc.MonthlyPlans,
		UpdatedAt: doc.UpdatedAt,
	}
}
