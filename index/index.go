// Package index maintains the rolling Home document that links every archive.
//
// The document is split into three regions: the header (everything up to and
// including the section heading), the list of archive links directly below the
// heading, and whatever trails the list. New links are always prepended to the
// list, so the order is reverse chronological only as long as runs happen in
// chronological order.
package index

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/scipunch/feedwiki/archive"
)

// FileName is the index document under the output root
const FileName = "Home" + archive.Ext

const itemPrefix = "- "

// Options controls the default header written when the index is created
type Options struct {
	Title       string `yaml:"title" toml:"title"`
	Description string `yaml:"description" toml:"description"`
	Heading     string `yaml:"heading" toml:"heading"`
}

// DefaultOptions returns the header used when the config leaves it out
func DefaultOptions() Options {
	return Options{
		Title:       "# News Wiki Home",
		Description: "Automatically collected news archive.",
		Heading:     "## Recent News",
	}
}

// Document is a parsed index
type Document struct {
	Header  []string
	Items   []string
	Trailer []string
}

// New creates an index with the default four line header and no items
func New(opts Options) *Document {
	return &Document{
		Header: []string{opts.Title, opts.Description, "", strings.TrimSpace(opts.Heading)},
	}
}

// Parse splits text into regions around the first line equal to heading.
// Text without the heading keeps all of its lines as header and gets the heading appended.
// Surrounding whitespace is ignored on both sides of the comparison.
func Parse(text, heading string) *Document {
	heading = strings.TrimSpace(heading)
	lines := splitLines(text)

	at := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == heading {
			at = i
			break
		}
	}
	if at < 0 {
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		return &Document{Header: append(lines, heading)}
	}

	doc := &Document{Header: lines[:at+1]}
	rest := lines[at+1:]
	n := 0
	for n < len(rest) && strings.HasPrefix(rest[n], itemPrefix) {
		n++
	}
	doc.Items = rest[:n]
	doc.Trailer = rest[n:]
	return doc
}

// Prepend inserts line as the first item of the list
func (d *Document) Prepend(line string) {
	d.Items = append([]string{line}, d.Items...)
}

// Bytes serializes the document, one trailing newline included
func (d *Document) Bytes() []byte {
	lines := make([]string, 0, len(d.Header)+len(d.Items)+len(d.Trailer))
	lines = append(lines, d.Header...)
	lines = append(lines, d.Items...)
	lines = append(lines, d.Trailer...)
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Line is the list item linking to the archive of slot
func Line(slot archive.Slot) string {
	return fmt.Sprintf("%s[%s](%s)", itemPrefix, slot.Title(), slot.RelPath())
}

// Load reads the index at path, or starts a fresh one when the file does not exist
func Load(path string, opts Options) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(opts), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index at '%s' with %w", path, err)
	}
	return Parse(string(data), opts.Heading), nil
}

// Update adds a link to slot's archive on top of the index at path
func Update(path string, opts Options, slot archive.Slot) error {
	doc, err := Load(path, opts)
	if err != nil {
		return err
	}
	doc.Prepend(Line(slot))

	if err := renameio.WriteFile(path, doc.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write index at '%s' with %w", path, err)
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
