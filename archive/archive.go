// Package archive renders the per-run snapshot document.
package archive

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"text/template"
	"time"

	"github.com/google/renameio/v2"
	"github.com/samber/lo"

	"github.com/scipunch/feedwiki/entry"
)

//go:embed archive.tmpl
var archiveTmpl string

var tmpl = template.Must(template.New("archive").Parse(archiveTmpl))

const (
	// DailyDir is the archive directory under the output root
	DailyDir = "Daily"
	// Ext is the extension of every generated document
	Ext = ".md"
)

// Slot identifies one run: a date and a two-digit 24h hour
type Slot struct {
	Date string
	Hour string
}

// NewSlot derives the slot t falls into
func NewSlot(t time.Time) Slot {
	return Slot{
		Date: t.Format("2006-01-02"),
		Hour: t.Format("15"),
	}
}

// Title is the human readable run name used as heading and index link text
func (s Slot) Title() string {
	return fmt.Sprintf("%s %sh News Digest", s.Date, s.Hour)
}

// RelPath is the archive location relative to the output root, always slash separated
func (s Slot) RelPath() string {
	return path.Join(DailyDir, s.Date+"-"+s.Hour+Ext)
}

// Section groups the entries of one feed source
type Section struct {
	Name    string
	Entries []entry.Entry
}

// Archive is the content of one run
type Archive struct {
	Slot     Slot
	Sections []Section
}

// Render builds the whole document in memory.
// Sections keep at most entry.MaxPerSource entries; the rest are dropped.
func Render(a Archive) ([]byte, error) {
	capped := Archive{
		Slot: a.Slot,
		Sections: lo.Map(a.Sections, func(s Section, _ int) Section {
			return Section{Name: s.Name, Entries: lo.Slice(s.Entries, 0, entry.MaxPerSource)}
		}),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, capped); err != nil {
		return nil, fmt.Errorf("could not render archive %s with %w", a.Slot.RelPath(), err)
	}
	return buf.Bytes(), nil
}

// Write renders a and replaces the archive file for its slot.
// It returns the path written.
func Write(outputDir string, a Archive) (string, error) {
	data, err := Render(a)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(outputDir, DailyDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory at '%s' with %w", dir, err)
	}

	out := filepath.Join(outputDir, filepath.FromSlash(a.Slot.RelPath()))
	if err := renameio.WriteFile(out, data, 0644); err != nil {
		return "", fmt.Errorf("could not write archive file '%s' with %w", out, err)
	}
	return out, nil
}
