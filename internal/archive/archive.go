// Package archive reads and writes user export files.
//
// Exports use the same version 1 envelope as the sync document and the
// backups, so any of the three can be imported. Imports also accept the
// older version 2 export envelope ({version, data, monthlyPlans}) and
// unversioned files, mapping all of them onto the same two documents.
// Files ending in .yaml or .yml use YAML; everything else is JSON.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trustdev-org/calendar-diary/internal/cloudsync"
	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"gopkg.in/yaml.v3"
)

// LegacyExportVersion is the envelope version of exports written by
// older releases.
const LegacyExportVersion = 2

const filePerm = fs.FileMode(0o600)

// Format is an export file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}

	return "json"
}

// FormatFor picks the encoding from a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Store is the part of a local store that import and export need.
type Store interface {
	Load() (models.LocalData, error)
	Save(data models.LocalData) error
}

// Payload is the content of an import file. A nil field was absent from
// the file and leaves the matching local document alone.
type Payload struct {
	Version   int
	UpdatedAt string
	Entries   models.Entries
	Plans     models.Plans
}

// envelope accepts every supported file version. Pointer fields record
// presence.
type envelope struct {
	Version      *int            `json:"version" yaml:"version"`
	UpdatedAt    string          `json:"updatedAt" yaml:"updatedAt"`
	Data         *models.Entries `json:"data" yaml:"data"`
	MonthlyPlans *models.Plans   `json:"monthlyPlans" yaml:"monthlyPlans"`
}

// Encode renders local content as an export file.
func Encode(local models.LocalData, f Format) ([]byte, error) {
	doc := models.Document{
		Version:      models.DocumentVersion,
		UpdatedAt:    local.UpdatedAt,
		Data:         local.Entries,
		MonthlyPlans: local.Plans,
	}

	if f == FormatJSON {
		return cloudsync.EncodeDocument(doc)
	}

	doc.Normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding yaml export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml export: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses an export file. Files that carry neither a data nor a
// monthlyPlans object fail with errors.ErrFormat.
func Decode(raw []byte, f Format) (Payload, error) {
	var env envelope

	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(raw, &env)
	} else {
		err = json.Unmarshal(raw, &env)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", errs.ErrFormat, err)
	}

	p := Payload{UpdatedAt: env.UpdatedAt}

	if env.Version != nil {
		p.Version = *env.Version
	}

	switch p.Version {
	case 0, models.DocumentVersion, LegacyExportVersion:
	default:
		return Payload{}, fmt.Errorf("%w: %w %d", errs.ErrFormat, errs.ErrUnsupportedVersion, p.Version)
	}

	if env.Data != nil && *env.Data != nil {
		p.Entries = *env.Data
	}

	if env.MonthlyPlans != nil && *env.MonthlyPlans != nil {
		p.Plans = *env.MonthlyPlans
	}

	if p.Entries == nil && p.Plans == nil {
		return Payload{}, fmt.Errorf("%w: no data or monthlyPlans", errs.ErrFormat)
	}

	return p, nil
}

// Export writes the local content to path.
func Export(path string, store Store) (int, error) {
	local, err := store.Load()
	if err != nil {
		return 0, fmt.Errorf("loading local data: %w", err)
	}

	raw, err := Encode(local, FormatFor(path))
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(path, raw, filePerm); err != nil {
		return 0, fmt.Errorf("writing export: %w", err)
	}

	return len(local.Entries), nil
}

// ImportResult describes an applied import.
type ImportResult struct {
	Version       int    `json:"version"`
	Days          int    `json:"days"`
	Months        int    `json:"months"`
	ReplacedData  bool   `json:"replaced_data"`
	ReplacedPlans bool   `json:"replaced_plans"`
	UpdatedAt     string `json:"updated_at"`
}

// Import reads path and replaces the local documents it carries. The
// result counts as a local edit: it is stamped with a fresh marker so
// the next sync uploads it.
func Import(path string, store Store, now time.Time) (ImportResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading import: %w", err)
	}

	p, err := Decode(raw, FormatFor(path))
	if err != nil {
		return ImportResult{}, err
	}

	local, err := store.Load()
	if err != nil {
		return ImportResult{}, fmt.Errorf("loading local data: %w", err)
	}

	res := ImportResult{Version: p.Version}

	if p.Entries != nil {
		local.Entries = p.Entries
		res.ReplacedData = true
	}

	if p.Plans != nil {
		local.Plans = p.Plans
		res.ReplacedPlans = true
	}

	local.UpdatedAt = models.FreshStamp(now, local.UpdatedAt)

	if err := store.Save(local); err != nil {
		return ImportResult{}, fmt.Errorf("saving imported data: %w", err)
	}

	res.Days = len(local.Entries)
	res.Months = len(local.Plans)
	res.UpdatedAt = local.UpdatedAt

	return res, nil
}
