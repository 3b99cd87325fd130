// Package entry holds the persisted feed entry and the rules that turn a raw
// feed item into one.
package entry

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/scipunch/feedwiki/fetcher/types"
)

const (
	// MaxSummaryLength is counted in characters, not bytes
	MaxSummaryLength = 200
	// MaxPerSource caps how many items of one feed a run looks at
	MaxPerSource = 10
	// NoSummary replaces empty summaries
	NoSummary = "(no summary)"
	// TimestampLayout formats the fetch-time fallback for missing publication dates
	TimestampLayout = "2006-01-02 15:04"
)

// Entry is one feed item as stored and rendered
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Source    string
	Published string
}

// Normalizer converts feed items into entries
type Normalizer struct {
	stripHTML bool
	policy    *bluemonday.Policy
}

// NewNormalizer creates a normalizer. With stripHTML set, summaries lose
// their markup before whitespace is collapsed.
func NewNormalizer(stripHTML bool) *Normalizer {
	n := &Normalizer{stripHTML: stripHTML}
	if stripHTML {
		n.policy = bluemonday.StrictPolicy()
	}
	return n
}

// Normalize builds an Entry from item. now is used when the item carries no date.
func (n *Normalizer) Normalize(item types.FeedItem, source string, now time.Time) Entry {
	published := strings.TrimSpace(item.PublishedRaw)
	if published == "" {
		published = now.Format(TimestampLayout)
	}

	return Entry{
		Title:     item.Title,
		Link:      item.Link,
		Summary:   n.Summary(item.Description),
		Source:    source,
		Published: published,
	}
}

// Summary collapses whitespace, truncates and substitutes the placeholder
func (n *Normalizer) Summary(raw string) string {
	if n.stripHTML {
		raw = html.UnescapeString(n.policy.Sanitize(raw))
	}

	summary := Collapse(raw)
	if summary == "" {
		return NoSummary
	}
	return Truncate(summary, MaxSummaryLength)
}

// SourceLabel prefers the feed title and falls back to the URL
func SourceLabel(feedTitle, url string) string {
	if title := strings.TrimSpace(feedTitle); title != "" {
		return title
	}
	return url
}

// Collapse trims s and squeezes every whitespace run into one space
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate keeps at most n runes of s
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
