// Package export publishes the most recently stored entries as a syndication feed.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/renameio/v2"
	"github.com/gorilla/feeds"
	"github.com/samber/lo"

	"github.com/scipunch/feedwiki/store"
)

// Source is the part of the store the exporter reads from
type Source interface {
	Recent(ctx context.Context, limit int) ([]store.Row, error)
}

// Options describe the exported feed
type Options struct {
	Title       string
	Link        string
	Description string
	Format      string // "atom" or "rss"
	Limit       int
}

// Build converts stored rows into a feed, keeping their order
func Build(rows []store.Row, opts Options, now time.Time) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       opts.Title,
		Link:        &feeds.Link{Href: opts.Link},
		Description: opts.Description,
		Created:     now,
	}
	feed.Items = lo.Map(rows, func(r store.Row, _ int) *feeds.Item {
		return &feeds.Item{
			Id:          r.Link,
			Title:       r.Title,
			Link:        &feeds.Link{Href: r.Link},
			Description: r.Summary,
			Author:      &feeds.Author{Name: r.Source},
			Created:     r.FetchedAt,
		}
	})
	if len(rows) > 0 {
		feed.Updated = rows[0].FetchedAt
	}
	return feed
}

// Render serializes feed in the requested format
func Render(feed *feeds.Feed, format string) (string, error) {
	switch format {
	case "atom":
		return feed.ToAtom()
	case "rss":
		return feed.ToRss()
	default:
		return "", fmt.Errorf("unknown export format: %s", format)
	}
}

// Write exports up to opts.Limit recent entries from src into path
func Write(ctx context.Context, path string, src Source, opts Options) error {
	rows, err := src.Recent(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to load entries for export with %w", err)
	}

	out, err := Render(Build(rows, opts, time.Now()), opts.Format)
	if err != nil {
		return fmt.Errorf("failed to render %s feed with %w", opts.Format, err)
	}

	if err := renameio.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write feed at '%s' with %w", path, err)
	}
	return nil
}
